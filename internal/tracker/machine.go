package tracker

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sleepy-project/sleepy-agent/internal/models"
)

// reading is one sample of both sensors.
type reading struct {
	idle  time.Duration
	label string
}

// sample queries the sensors without holding s.mu, so a slow platform query
// never blocks Shutdown.
func (s *Service) sample() reading {
	return reading{
		idle:  s.idle.IdleDuration(),
		label: s.activity.ForegroundLabel(),
	}
}

func (s *Service) onActivePoll() {
	started := time.Now()
	r := s.sample()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.activeTick(started, r)
	s.assertOneArmed()
}

func (s *Service) onIdlePoll() {
	started := time.Now()
	r := s.sample()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.idleTick(started, r)
	s.assertOneArmed()
}

// activeTick reports the foreground label, or reports asleep and switches to
// Idle once the user has been away for the idle threshold. Timer changes are
// always the last step.
func (s *Service) activeTick(started time.Time, r reading) {
	if s.session.mode == models.ModeActive && r.idle >= s.poll.IdleEnterThreshold {
		s.reporter.Report(s.session.asleepEvent())
		s.session.mode = models.ModeIdle

		log.Info().Dur("idle", r.idle).Msg("User away, switching to idle polling")

		s.activePoll.disarm()
		s.idlePoll.arm()
		return
	}

	s.session.lastForegroundLabel = r.label
	s.reporter.Report(s.session.activeEvent(r.label))

	log.Debug().Dur("idle", r.idle).Str("app", r.label).Msg("Reported active")

	s.activePoll.rearm(started)
}

// idleTick switches back to Active when there was input during the last idle
// interval or the foreground window changed since the last active report.
func (s *Service) idleTick(started time.Time, r reading) {
	inputSeen := r.idle < s.poll.IdleInterval
	switched := r.label != s.session.lastForegroundLabel

	if !inputSeen && !switched {
		log.Debug().Dur("idle", r.idle).Msg("Still idle")
		s.idlePoll.rearm(started)
		return
	}

	s.session.lastForegroundLabel = r.label
	s.reporter.Report(s.session.activeEvent(r.label))
	s.session.mode = models.ModeActive

	log.Info().
		Dur("idle", r.idle).
		Str("app", r.label).
		Bool("input", inputSeen).
		Bool("window_changed", switched).
		Msg("Activity resumed, switching to active polling")

	s.idlePoll.disarm()
	s.activePoll.arm()
}

// assertOneArmed panics if the timers disagree with each other or with the
// mode. Ticks are serialized, so this can only fire on a programming error.
func (s *Service) assertOneArmed() {
	active, idle := s.activePoll.armed, s.idlePoll.armed
	ok := active != idle &&
		(s.session.mode == models.ModeActive) == active
	if !ok {
		panic(fmt.Sprintf("tracker: inconsistent timers in %s mode (%s armed=%v, %s armed=%v)",
			s.session.mode, s.activePoll.name, active, s.idlePoll.name, idle))
	}
}
