package tracker

import (
	"github.com/sleepy-project/sleepy-agent/internal/config"
	"github.com/sleepy-project/sleepy-agent/internal/models"
)

// Session is the per-process presence state. Only tick processing in
// Service touches lastForegroundLabel and mode.
type Session struct {
	Endpoint   string
	Credential string
	DeviceID   int

	lastForegroundLabel string
	mode                models.Mode
}

func newSession(remote config.RemoteConfig) Session {
	return Session{
		Endpoint:   remote.Server,
		Credential: remote.Secret,
		DeviceID:   remote.Device,
		mode:       models.ModeActive,
	}
}

func (s *Session) activeEvent(label string) models.StatusEvent {
	return models.NewActiveEvent(s.Credential, s.DeviceID, label)
}

func (s *Session) asleepEvent() models.StatusEvent {
	return models.NewAsleepEvent(s.Credential, s.DeviceID)
}
