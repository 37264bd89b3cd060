// Package tracker implements the presence state machine.
//
// The service alternates between two modes. In Active mode the Active-Poll
// timer samples idle time and the foreground window every ActiveInterval and
// reports Active; once idle time crosses IdleEnterThreshold it reports Asleep
// and switches to Idle mode. In Idle mode the Idle-Poll timer checks every
// IdleInterval for fresh input or a changed foreground window and switches
// back to Active after reporting it. Exactly one of the two timers is armed
// while the service runs.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sleepy-project/sleepy-agent/internal/config"
	"github.com/sleepy-project/sleepy-agent/internal/models"
)

// IdleSensor returns the time since the last user input, never negative.
type IdleSensor interface {
	IdleDuration() time.Duration
}

// ActivitySensor returns a label for the foreground application.
type ActivitySensor interface {
	ForegroundLabel() string
}

// Reporter dispatches a status event without blocking.
type Reporter interface {
	Report(event models.StatusEvent)
}

type Service struct {
	poll          config.PollConfig
	offlineOnExit bool

	idle     IdleSensor
	activity ActivitySensor
	reporter Reporter

	mu         sync.Mutex
	session    Session
	activePoll *pollTimer
	idlePoll   *pollTimer
	started    bool
	stopped    bool

	stopChan     chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
}

func NewService(cfg *config.Config, idle IdleSensor, activity ActivitySensor, reporter Reporter) *Service {
	return &Service{
		poll:          cfg.Poll,
		offlineOnExit: cfg.Report.OfflineOnExit,
		idle:          idle,
		activity:      activity,
		reporter:      reporter,
		session:       newSession(cfg.Remote),
		activePoll:    newPollTimer("active-poll", cfg.Poll.ActiveInterval),
		idlePoll:      newPollTimer("idle-poll", cfg.Poll.IdleInterval),
		stopChan:      make(chan struct{}),
	}
}

// Start runs the state machine until ctx is cancelled or Stop/Shutdown is
// called. The first Active-Poll tick fires immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("tracker has been shut down")
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("tracker is already running")
	}
	s.started = true
	s.begin()
	s.mu.Unlock()

	log.Info().
		Dur("active_interval", s.poll.ActiveInterval).
		Dur("idle_interval", s.poll.IdleInterval).
		Dur("idle_threshold", s.poll.IdleEnterThreshold).
		Int("device", s.session.DeviceID).
		Msg("Starting presence tracker")

	defer func() {
		s.mu.Lock()
		s.activePoll.disarm()
		s.idlePoll.disarm()
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		activeC, idleC := s.activePoll.C(), s.idlePoll.C()
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			log.Info().Msg("Tracker stopped by context")
			return ctx.Err()

		case <-s.stopChan:
			log.Info().Msg("Tracker stopped")
			return nil

		case <-activeC:
			s.onActivePoll()

		case <-idleC:
			s.onIdlePoll()
		}
	}
}

// begin resets the session to Active with Active-Poll about to fire.
// Callers hold s.mu.
func (s *Service) begin() {
	s.session.mode = models.ModeActive
	s.idlePoll.disarm()
	s.activePoll.arm()
}

// Stop halts the loop without reporting anything.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Shutdown disarms both timers, stops the loop and, if configured, reports
// the device as asleep. Only the first call has any effect.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.activePoll.disarm()
		s.idlePoll.disarm()
		event := s.session.asleepEvent()
		s.mu.Unlock()

		s.Stop()

		if s.offlineOnExit {
			log.Info().Msg("Reporting device offline")
			s.reporter.Report(event)
		}
	})
}
