package pjlink

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EventKind says which part of a response an Event carries.
type EventKind int

const (
	EventPower EventKind = iota
	EventSource
	EventLampHours
	EventAck
	EventProtocolError
)

// Event is one recognized response frame.
type Event struct {
	Kind      EventKind
	Power     PowerState
	Source    string
	LampHours uint32
	Command   string // POWR, INPT or LAMP
	Code      string // raw value after '='
	Err       *ProtocolError
}

// Describe renders the event the way it is written to the debug sink.
func (e Event) Describe() string {
	switch e.Kind {
	case EventPower:
		if e.Code == "ERR3" {
			return "Projector reports unavailable, treating as warming up"
		}
		switch e.Power {
		case PowerOff:
			return "Projector reports power off"
		case PowerOn:
			return "Projector reports power on"
		case PowerCoolingDown:
			return "Projector reports cooling down"
		case PowerWarmingUp:
			return "Projector reports warming up"
		}
		return "Projector reports power " + e.Power.String()
	case EventSource:
		return "Projector reports it is on source " + e.Source
	case EventLampHours:
		return fmt.Sprintf("Projector reports lamp hours = %d", e.LampHours)
	case EventAck:
		return "Projector acknowledged " + e.Command
	case EventProtocolError:
		return "Projector reports " + e.Err.Meaning()
	}
	return "Projector sent " + e.Command + "=" + e.Code
}

// ResponseParser frames the inbound byte stream on '\r' and decodes each
// frame. Partial frames are kept until the rest arrives. It is not safe for
// concurrent use; the client drives it from a single goroutine.
type ResponseParser struct {
	buf   []byte
	limit int
}

// NewResponseParser returns a parser that discards unterminated text once it
// grows beyond limit bytes. A limit <= 0 uses ReceiveBufferSize.
func NewResponseParser(limit int) *ResponseParser {
	if limit <= 0 {
		limit = ReceiveBufferSize
	}
	return &ResponseParser{limit: limit}
}

// Reset drops any buffered partial frame.
func (p *ResponseParser) Reset() {
	p.buf = nil
}

// Buffered returns the number of bytes waiting for a terminator.
func (p *ResponseParser) Buffered() int {
	return len(p.buf)
}

// Feed appends data to the buffer and decodes every complete frame. Events
// for good frames are returned even when other frames in the same delivery
// are malformed; the returned error then wraps ErrMalformedResponse.
func (p *ResponseParser) Feed(data []byte) ([]Event, error) {
	p.buf = append(p.buf, data...)

	var events []Event
	var errs []error
	consumed := 0
	for {
		i := bytes.IndexByte(p.buf[consumed:], terminator)
		if i < 0 {
			break
		}
		frame := string(p.buf[consumed : consumed+i])
		consumed += i + 1

		ev, ok, err := parseFrame(frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			events = append(events, ev)
		}
	}

	rest := p.buf[consumed:]
	switch {
	case len(rest) > p.limit:
		errs = append(errs, fmt.Errorf("%w: %d bytes without terminator", ErrMalformedResponse, len(rest)))
		p.buf = nil
	case len(rest) == 0:
		p.buf = nil
	case consumed > 0:
		p.buf = append([]byte(nil), rest...)
	}

	return events, errors.Join(errs...)
}

func parseFrame(frame string) (Event, bool, error) {
	frame = strings.TrimSpace(frame)
	if frame == "" {
		return Event{}, false, nil
	}
	if v, ok := strings.CutPrefix(frame, "%1POWR="); ok {
		return parsePower(frame, v)
	}
	if v, ok := strings.CutPrefix(frame, "%1INPT="); ok {
		return parseInput(frame, v)
	}
	if _, v, ok := strings.Cut(frame, "LAMP="); ok {
		return parseLamp(frame, v)
	}
	// greetings and responses to queries we never send
	return Event{}, false, nil
}

func parsePower(frame, v string) (Event, bool, error) {
	ev := Event{Kind: EventPower, Command: "POWR", Code: v}
	switch v {
	case "0":
		ev.Power = PowerOff
	case "1":
		ev.Power = PowerOn
	case "2":
		ev.Power = PowerCoolingDown
	case "3":
		ev.Power = PowerWarmingUp
	case "ERR3":
		// some projectors (Epson) answer ERR3 for the whole warm-up period
		ev.Power = PowerWarmingUp
	case "OK":
		ev.Kind = EventAck
	case "ERR1", "ERR2", "ERR4":
		ev.Kind = EventProtocolError
		ev.Err = &ProtocolError{Command: "POWR", Code: v}
	default:
		return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedResponse, frame)
	}
	return ev, true, nil
}

func parseInput(frame, v string) (Event, bool, error) {
	ev := Event{Command: "INPT", Code: v}
	switch {
	case v == "":
		return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedResponse, frame)
	case v == "OK":
		ev.Kind = EventAck
	case isErrorCode(v):
		ev.Kind = EventProtocolError
		ev.Err = &ProtocolError{Command: "INPT", Code: v}
	default:
		ev.Kind = EventSource
		ev.Source = v
	}
	return ev, true, nil
}

func parseLamp(frame, v string) (Event, bool, error) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedResponse, frame)
	}
	if isErrorCode(fields[0]) {
		return Event{
			Kind:    EventProtocolError,
			Command: "LAMP",
			Code:    fields[0],
			Err:     &ProtocolError{Command: "LAMP", Code: fields[0]},
		}, true, nil
	}
	hours, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Event{}, false, fmt.Errorf("%w: %q: %w", ErrMalformedResponse, frame, err)
	}
	return Event{Kind: EventLampHours, Command: "LAMP", Code: v, LampHours: uint32(hours)}, true, nil
}

func isErrorCode(v string) bool {
	return len(v) == 4 && strings.HasPrefix(v, "ERR") && v[3] >= '1' && v[3] <= '4'
}
