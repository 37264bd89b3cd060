package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sleepy-project/sleepy-agent/internal/models"
	"github.com/sleepy-project/sleepy-agent/internal/version"
)

// ProtocolVersion identifies the JSON POST wire format.
const ProtocolVersion = "2"

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded %d %s", e.Code, http.StatusText(e.Code))
}

// HTTPSink POSTs status events as JSON to the presence endpoint.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSink creates a sink for endpoint whose client gives up after timeout.
func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Name() string {
	return "http"
}

// Send issues exactly one POST. The response body is drained and ignored.
func (s *HTTPSink) Send(ctx context.Context, event models.StatusEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to encode status event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Sleepy-Protocol", ProtocolVersion)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
