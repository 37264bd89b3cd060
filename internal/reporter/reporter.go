// Package reporter delivers status events to the presence service.
//
// Delivery is fire-and-forget: Report returns immediately, every sink gets
// its own goroutine bounded by a timeout, and failures are logged and
// counted but never retried.
package reporter

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sleepy-project/sleepy-agent/internal/models"
)

// Sink delivers a single event to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, event models.StatusEvent) error
	Close() error
}

// SinkStats counts delivery outcomes for one sink.
type SinkStats struct {
	Name      string              `json:"name"`
	Sent      uint64              `json:"sent"`
	Rejected  uint64              `json:"rejected"`
	Failed    uint64              `json:"failed"`
	LastEvent *models.StatusEvent `json:"last_event,omitempty"`
	LastError string              `json:"last_error,omitempty"`
	LastAt    time.Time           `json:"last_at"`
}

// Reporter fans status events out to its sinks
type Reporter struct {
	sinks   []Sink
	timeout time.Duration

	mu       sync.Mutex
	stats    []SinkStats
	draining bool
	wg       sync.WaitGroup
}

// New creates a reporter. timeout bounds each individual delivery.
func New(timeout time.Duration, sinks ...Sink) *Reporter {
	stats := make([]SinkStats, len(sinks))
	for i, s := range sinks {
		stats[i].Name = s.Name()
	}
	return &Reporter{
		sinks:   sinks,
		timeout: timeout,
		stats:   stats,
	}
}

// Report dispatches event to every sink without waiting for the outcome.
func (r *Reporter) Report(event models.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.draining {
		log.Debug().Str("status", event.Status.String()).Msg("Reporter is flushing, dropping status event")
		return
	}

	for i, sink := range r.sinks {
		r.wg.Add(1)
		go r.deliver(i, sink, event)
	}
}

func (r *Reporter) deliver(idx int, sink Sink, event models.StatusEvent) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	err := sink.Send(ctx, event)
	r.record(idx, event, err)

	logger := log.With().
		Str("sink", sink.Name()).
		Str("status", event.Status.String()).
		Str("app", event.App).
		Dur("took", time.Since(start)).
		Logger()

	var statusErr *StatusError
	switch {
	case err == nil:
		logger.Debug().Msg("Status reported")
	case errors.As(err, &statusErr):
		logger.Warn().Int("code", statusErr.Code).Msg("Status report rejected")
	default:
		logger.Warn().Err(err).Msg("Status report failed")
	}
}

func (r *Reporter) record(idx int, event models.StatusEvent, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := &r.stats[idx]
	redacted := event.Redacted()
	st.LastEvent = &redacted
	st.LastAt = time.Now()

	var statusErr *StatusError
	switch {
	case err == nil:
		st.Sent++
		st.LastError = ""
		return
	case errors.As(err, &statusErr):
		st.Rejected++
	default:
		st.Failed++
	}
	st.LastError = err.Error()
}

// Stats returns a snapshot of per-sink delivery counters.
func (r *Reporter) Stats() []SinkStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SinkStats, len(r.stats))
	copy(out, r.stats)
	return out
}

// Flush stops accepting new events and waits for in-flight deliveries,
// giving up when ctx is done.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "abandoning in-flight status reports")
	}
}

// Close releases the sinks. Call Flush first to let deliveries finish.
func (r *Reporter) Close() error {
	var firstErr error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			log.Warn().Err(err).Str("sink", sink.Name()).Msg("Error closing sink")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
