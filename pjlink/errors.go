package pjlink

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send when the socket is not Connected.
	// Nothing is written to the wire in that case.
	ErrNotConnected = errors.New("not connected")

	// ErrMalformedResponse is returned by the parser for a recognized response
	// whose payload cannot be decoded, or for unterminated text that overflows
	// the receive buffer.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInvalidInput is returned for input codes that cannot be put on the wire.
	ErrInvalidInput = errors.New("invalid input code")
)

// ProtocolError is an ERRn code reported by the projector.
type ProtocolError struct {
	Command string // POWR, INPT or LAMP
	Code    string // ERR1..ERR4
}

// Meaning returns what the projector is telling us with this code.
func (e *ProtocolError) Meaning() string {
	switch {
	case e.Command == "POWR" && e.Code == "ERR3":
		return "projector unavailable"
	case e.Command == "POWR" && e.Code == "ERR4":
		return "projector failure"
	case e.Command == "INPT" && e.Code == "ERR2":
		return "input does not exist"
	case e.Command == "INPT" && e.Code == "ERR3":
		return "input unavailable"
	case e.Code == "ERR1":
		return "undefined command"
	case e.Code == "ERR2":
		return "out of parameter"
	case e.Code == "ERR3":
		return "unavailable time"
	case e.Code == "ERR4":
		return "projector failure"
	default:
		return "unknown error"
	}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s=%s: %s", e.Command, e.Code, e.Meaning())
}

// SocketError is a transport failure. It drives the reconnect state machine
// and only reaches callers wrapped in ErrNotConnected.
type SocketError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *SocketError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("socket %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("socket %s", e.Op)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SocketError) Unwrap() error {
	return e.Cause
}
