package pjlink

import (
	"errors"
	"testing"
)

func TestCommandFormats(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wire    string
		purpose Purpose
	}{
		{"Query power", QueryPowerCommand(), "%1POWR ?\r", QueryPower},
		{"Power on", PowerCommand(true), "%1POWR 1\r", SetPower},
		{"Power off", PowerCommand(false), "%1POWR 0\r", SetPower},
		{"Query source", QuerySourceCommand(), "%1INPT ?\r", QuerySource},
		{"Query lamp", QueryLampCommand(), "LAMP ?\r", QueryLamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.cmd.Bytes()) != tt.wire {
				t.Errorf("wire = %q, expected %q", tt.cmd.Bytes(), tt.wire)
			}
			if tt.cmd.Purpose != tt.purpose {
				t.Errorf("Purpose = %v, expected %v", tt.cmd.Purpose, tt.purpose)
			}
		})
	}
}

func TestInputCommand(t *testing.T) {
	cmd, err := InputCommand("31")
	if err != nil {
		t.Fatalf("InputCommand(31) returned error: %v", err)
	}
	if cmd.Text != "%1INPT 31\r" {
		t.Errorf("Text = %q, expected %q", cmd.Text, "%1INPT 31\r")
	}
	if cmd.Purpose != SetSource {
		t.Errorf("Purpose = %v, expected set-source", cmd.Purpose)
	}
	if cmd.String() != "%1INPT 31" {
		t.Errorf("String() = %q, expected terminator stripped", cmd.String())
	}
}

func TestInputCommand_Invalid(t *testing.T) {
	for _, code := range []string{"", "3 1", "31\r", "31\n%1POWR 0"} {
		if _, err := InputCommand(code); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("InputCommand(%q) error = %v, expected ErrInvalidInput", code, err)
		}
	}
}

func TestPurpose_String(t *testing.T) {
	names := map[Purpose]string{
		QueryPower:  "query-power",
		QuerySource: "query-source",
		QueryLamp:   "query-lamp",
		SetPower:    "set-power",
		SetSource:   "set-source",
	}
	for p, expected := range names {
		if p.String() != expected {
			t.Errorf("String() = %s, expected %s", p.String(), expected)
		}
	}
}
