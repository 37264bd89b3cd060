package reporter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sleepy-project/sleepy-agent/internal/models"
)

// mirrorEvent is the NATS payload. The shared secret is never published.
type mirrorEvent struct {
	Device int           `json:"device"`
	Status models.Status `json:"status"`
	App    string        `json:"app"`
	At     time.Time     `json:"at"`
}

func encodeMirrorEvent(event models.StatusEvent, at time.Time) ([]byte, error) {
	return json.Marshal(mirrorEvent{
		Device: event.Device,
		Status: event.Status,
		App:    event.App,
		At:     at.UTC(),
	})
}

// NATSSink mirrors status events onto a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to url. Publishing is buffered by the client and
// survives reconnects.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("sleepy-agent"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to NATS at %s", url)
	}

	return &NATSSink{nc: nc, subject: subject}, nil
}

func (s *NATSSink) Name() string {
	return "nats"
}

// Send publishes the event without the secret
func (s *NATSSink) Send(ctx context.Context, event models.StatusEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeMirrorEvent(event, time.Now())
	if err != nil {
		return errors.Wrap(err, "failed to encode mirror event")
	}

	if err := s.nc.Publish(s.subject, data); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", s.subject)
	}
	return nil
}

// Close drains pending publishes and closes the connection
func (s *NATSSink) Close() error {
	return s.nc.Drain()
}
