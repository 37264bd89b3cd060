// Package sensor adapts a window.Detector into the two readings the presence
// tracker needs. Detector failures never reach the tracker: idle time falls
// back to zero and the foreground label to window.UnknownLabel.
package sensor

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

// Idle reports how long the user has been away from keyboard and pointer.
type Idle struct {
	detector window.Detector
}

// NewIdle creates an idle sensor backed by detector.
func NewIdle(detector window.Detector) *Idle {
	return &Idle{detector: detector}
}

// IdleDuration returns the time since the last user input, or zero when the
// platform query fails.
func (s *Idle) IdleDuration() time.Duration {
	idle, err := s.detector.GetIdleTime()
	if err != nil {
		log.Debug().Err(err).Str("display_server", s.detector.GetDisplayServer()).Msg("Idle query failed, assuming active")
		return 0
	}
	if idle < 0 {
		log.Debug().Dur("idle", idle).Msg("Negative idle time, assuming active")
		return 0
	}
	return idle
}

// Activity reports a label for the application owning the focused window.
type Activity struct {
	detector window.Detector
}

// NewActivity creates an activity sensor backed by detector.
func NewActivity(detector window.Detector) *Activity {
	return &Activity{detector: detector}
}

// ForegroundLabel returns the focused window's title, falling back to its
// process name, or window.UnknownLabel when neither can be resolved.
func (s *Activity) ForegroundLabel() string {
	info, err := s.detector.GetFocusedWindow()
	if err != nil {
		log.Debug().Err(err).Str("display_server", s.detector.GetDisplayServer()).Msg("Foreground query failed")
		return window.UnknownLabel
	}

	label := info.Label()
	if label == "" {
		return window.UnknownLabel
	}
	return label
}
