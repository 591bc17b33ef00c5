package state

import (
	"strconv"
	"time"

	"github.com/elijahnyp/pjlink_controller/pjlink"
)

// Status is the JSON view of one projector.
type Status struct {
	Name           string     `json:"name"`
	Label          string     `json:"label"`
	Address        string     `json:"address"`
	Connection     string     `json:"connection"`
	Connected      bool       `json:"connected"`
	Power          string     `json:"power"`
	Input          *string    `json:"input,omitempty"`
	LampHours      *uint32    `json:"lamp_hours,omitempty"`
	PollingEnabled bool       `json:"polling_enabled"`
	PowerUpdated   *time.Time `json:"power_updated,omitempty"`
	InputUpdated   *time.Time `json:"input_updated,omitempty"`
	LampUpdated    *time.Time `json:"lamp_updated,omitempty"`
}

func NewStatus(name, label, address string, conn pjlink.ConnectionState, polling bool, snap pjlink.Snapshot) Status {
	s := Status{
		Name:           name,
		Label:          label,
		Address:        address,
		Connection:     conn.String(),
		Connected:      conn == pjlink.Connected,
		Power:          snap.Power.String(),
		PollingEnabled: polling,
		PowerUpdated:   timePtr(snap.PowerUpdated),
		InputUpdated:   timePtr(snap.SourceUpdated),
		LampUpdated:    timePtr(snap.LampUpdated),
	}
	if snap.HasSource {
		src := snap.Source
		s.Input = &src
	}
	if snap.HasLampHours {
		hours := snap.LampHours
		s.LampHours = &hours
	}
	return s
}

// InputPayload is the MQTT payload for the input topic; empty when unknown.
func (s Status) InputPayload() string {
	if s.Input == nil {
		return ""
	}
	return *s.Input
}

// LampHoursPayload is the MQTT payload for the lamp hours topic; empty when
// unknown.
func (s Status) LampHoursPayload() string {
	if s.LampHours == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*s.LampHours), 10)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
