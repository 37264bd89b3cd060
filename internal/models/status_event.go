package models

import "fmt"

// Status is the presence value carried by a report.
type Status int

const (
	StatusAsleep Status = 0
	StatusActive Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusAsleep:
		return "asleep"
	case StatusActive:
		return "active"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Mode is the polling mode of the presence state machine.
type Mode int

const (
	ModeActive Mode = iota
	ModeIdle
)

func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModeIdle:
		return "idle"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// StatusEvent is a single presence report. It is built fresh for every
// dispatch and passed by value, so delivery goroutines never share it.
type StatusEvent struct {
	Secret string `json:"secret"`
	Device int    `json:"device"`
	Status Status `json:"status"`
	App    string `json:"app"`
}

// NewActiveEvent builds an Active report for the given foreground label.
func NewActiveEvent(secret string, device int, app string) StatusEvent {
	return StatusEvent{Secret: secret, Device: device, Status: StatusActive, App: app}
}

// NewAsleepEvent builds an Asleep report. Asleep reports never carry an app.
func NewAsleepEvent(secret string, device int) StatusEvent {
	return StatusEvent{Secret: secret, Device: device, Status: StatusAsleep}
}

// Redacted returns a copy without the shared secret, for logs and mirrors.
func (e StatusEvent) Redacted() StatusEvent {
	e.Secret = ""
	return e
}
