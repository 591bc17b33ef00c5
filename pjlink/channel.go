package pjlink

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Sender is the write side of a connection.
type Sender interface {
	Send(p []byte) error
}

// CommandChannel puts commands on the wire. Failed sends are reported to the
// caller and never retried here; polls retry naturally on their next tick.
type CommandChannel struct {
	sender Sender
	log    zerolog.Logger
	debug  func(string)
	onSent func(Command, error)
}

// NewCommandChannel wraps sender. debug and onSent may be nil.
func NewCommandChannel(sender Sender, log zerolog.Logger, debug func(string), onSent func(Command, error)) *CommandChannel {
	if debug == nil {
		debug = func(string) {}
	}
	return &CommandChannel{sender: sender, log: log, debug: debug, onSent: onSent}
}

// Submit sends cmd and returns ErrNotConnected (possibly wrapping a socket
// error) when the connection is down.
func (ch *CommandChannel) Submit(cmd Command) error {
	err := ch.sender.Send(cmd.Bytes())
	if ch.onSent != nil {
		ch.onSent(cmd, err)
	}
	if err != nil {
		ch.log.Warn().Err(err).Str("purpose", cmd.Purpose.String()).Str("command", cmd.String()).Msg("command not sent")
		ch.debug(fmt.Sprintf("send failed (%s): %v", cmd, err))
		return fmt.Errorf("%s: %w", cmd.Purpose, err)
	}
	ch.debug("data sent: " + cmd.String())
	return nil
}
