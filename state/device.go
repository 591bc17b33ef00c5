package state

// Projector is what the host surfaces (MQTT, HTTP, websocket) need from a
// managed projector.
type Projector interface {
	Name() string
	Status() Status
	SetPower(on bool) error
	ChangeInput(code string) error
	SetPollingEnabled(enabled bool)
}
