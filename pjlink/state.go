package pjlink

import (
	"sync"
	"time"
)

// ConnectionState is owned by the ConnectionManager.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "invalid"
	}
}

// PowerState is the last power status the projector reported.
// The zero value is PowerUnknown.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerOff
	PowerOn
	PowerWarmingUp
	PowerCoolingDown
	PowerUnavailable
	PowerFailure
)

func (p PowerState) String() string {
	switch p {
	case PowerOff:
		return "off"
	case PowerOn:
		return "on"
	case PowerWarmingUp:
		return "warming_up"
	case PowerCoolingDown:
		return "cooling_down"
	case PowerUnavailable:
		return "unavailable"
	case PowerFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Snapshot is a coherent copy of DeviceState.
type Snapshot struct {
	Power         PowerState
	Source        string
	HasSource     bool
	LampHours     uint32
	HasLampHours  bool
	PowerUpdated  time.Time
	SourceUpdated time.Time
	LampUpdated   time.Time
}

// DeviceState holds the last known projector status. Readers may call the
// accessors from any goroutine; writes only happen through Apply, which the
// client calls from its receive loop.
type DeviceState struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewDeviceState returns a state with power Unknown and no source or lamp hours.
func NewDeviceState() *DeviceState {
	return &DeviceState{now: time.Now}
}

func (s *DeviceState) Power() PowerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Power
}

func (s *DeviceState) Source() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Source, s.snap.HasSource
}

func (s *DeviceState) LampHours() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.LampHours, s.snap.HasLampHours
}

func (s *DeviceState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Apply folds one parser event into the state and reports whether anything
// changed. Events that carry no state (acks, protocol errors) return false.
func (s *DeviceState) Apply(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	switch ev.Kind {
	case EventPower:
		changed := s.snap.Power != ev.Power
		s.snap.Power = ev.Power
		s.snap.PowerUpdated = now
		return changed
	case EventSource:
		changed := !s.snap.HasSource || s.snap.Source != ev.Source
		s.snap.Source = ev.Source
		s.snap.HasSource = true
		s.snap.SourceUpdated = now
		return changed
	case EventLampHours:
		changed := !s.snap.HasLampHours || s.snap.LampHours != ev.LampHours
		s.snap.LampHours = ev.LampHours
		s.snap.HasLampHours = true
		s.snap.LampUpdated = now
		return changed
	}
	return false
}
