package pjlink

import (
	"fmt"
	"strings"
)

// Purpose tags a command for logging and metrics.
type Purpose int

const (
	QueryPower Purpose = iota
	QuerySource
	QueryLamp
	SetPower
	SetSource
)

func (p Purpose) String() string {
	switch p {
	case QueryPower:
		return "query-power"
	case QuerySource:
		return "query-source"
	case QueryLamp:
		return "query-lamp"
	case SetPower:
		return "set-power"
	case SetSource:
		return "set-source"
	default:
		return "unknown"
	}
}

// terminator ends every command and response on the wire.
const terminator = '\r'

// Command is one outbound request, terminator included.
type Command struct {
	Text    string
	Purpose Purpose
}

// Bytes returns the wire encoding.
func (c Command) Bytes() []byte {
	return []byte(c.Text)
}

// String returns the command without its terminator, for log lines.
func (c Command) String() string {
	return strings.TrimRight(c.Text, "\r")
}

func QueryPowerCommand() Command {
	return Command{Text: "%1POWR ?\r", Purpose: QueryPower}
}

func QuerySourceCommand() Command {
	return Command{Text: "%1INPT ?\r", Purpose: QuerySource}
}

func QueryLampCommand() Command {
	return Command{Text: "LAMP ?\r", Purpose: QueryLamp}
}

// PowerCommand turns the projector on or off.
func PowerCommand(on bool) Command {
	if on {
		return Command{Text: "%1POWR 1\r", Purpose: SetPower}
	}
	return Command{Text: "%1POWR 0\r", Purpose: SetPower}
}

// InputCommand selects an input. Codes are device specific (for example
// "31" for the first digital input) and must be a single token.
func InputCommand(code string) (Command, error) {
	if code == "" || strings.ContainsAny(code, " \t\r\n") {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidInput, code)
	}
	return Command{Text: "%1INPT " + code + "\r", Purpose: SetSource}, nil
}
