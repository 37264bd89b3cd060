package reporter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sleepy-project/sleepy-agent/internal/models"
)

type capturedRequest struct {
	method  string
	header  http.Header
	payload map[string]any
}

func newCapturingServer(t *testing.T, code int) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		requests <- capturedRequest{method: r.Method, header: r.Header.Clone(), payload: payload}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(server.Close)

	return server, requests
}

func flush(t *testing.T, r *Reporter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
}

func TestHTTPSinkWireFormat(t *testing.T) {
	server, requests := newCapturingServer(t, http.StatusOK)

	sink := NewHTTPSink(server.URL, time.Second)
	event := models.NewActiveEvent("s3cret", 7, "Editor")
	if err := sink.Send(context.Background(), event); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	req := <-requests
	if req.method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.method)
	}
	if got := req.header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", got)
	}
	if got := req.header.Get("X-Sleepy-Protocol"); got != ProtocolVersion {
		t.Errorf("X-Sleepy-Protocol = %s, want %s", got, ProtocolVersion)
	}
	if _, err := uuid.Parse(req.header.Get("X-Request-ID")); err != nil {
		t.Errorf("X-Request-ID = %q is not a UUID", req.header.Get("X-Request-ID"))
	}
	if !strings.HasPrefix(req.header.Get("User-Agent"), "sleepy-agent/") {
		t.Errorf("User-Agent = %s", req.header.Get("User-Agent"))
	}

	want := map[string]any{"secret": "s3cret", "device": float64(7), "status": float64(1), "app": "Editor"}
	for k, v := range want {
		if req.payload[k] != v {
			t.Errorf("payload[%s] = %v, want %v", k, req.payload[k], v)
		}
	}
	if len(req.payload) != len(want) {
		t.Errorf("payload has %d fields, want %d: %v", len(req.payload), len(want), req.payload)
	}
}

func TestHTTPSinkNon2xx(t *testing.T) {
	server, _ := newCapturingServer(t, http.StatusUnauthorized)

	err := NewHTTPSink(server.URL, time.Second).Send(context.Background(), models.NewAsleepEvent("bad", 1))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Send() error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusUnauthorized {
		t.Errorf("Code = %d, want 401", statusErr.Code)
	}
}

func TestHTTPSinkTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	err := NewHTTPSink(server.URL, 100*time.Millisecond).Send(context.Background(), models.NewAsleepEvent("s", 1))
	if err == nil {
		t.Fatal("Send() error = nil against a hung server, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send() took %v, want bounded by the client timeout", elapsed)
	}
}

func TestReporterStats(t *testing.T) {
	okServer, _ := newCapturingServer(t, http.StatusOK)
	rejectServer, _ := newCapturingServer(t, http.StatusInternalServerError)
	deadServer := httptest.NewServer(http.NotFoundHandler())
	deadURL := deadServer.URL
	deadServer.Close()

	r := New(time.Second,
		NewHTTPSink(okServer.URL, time.Second),
		&namedSink{Sink: NewHTTPSink(rejectServer.URL, time.Second), name: "reject"},
		&namedSink{Sink: NewHTTPSink(deadURL, time.Second), name: "dead"},
	)

	r.Report(models.NewActiveEvent("s3cret", 1, "Terminal"))
	r.Report(models.NewAsleepEvent("s3cret", 1))
	flush(t, r)

	stats := r.Stats()
	if len(stats) != 3 {
		t.Fatalf("Stats() has %d entries, want 3", len(stats))
	}

	if stats[0].Name != "http" || stats[0].Sent != 2 || stats[0].Rejected != 0 || stats[0].Failed != 0 {
		t.Errorf("ok sink stats = %+v", stats[0])
	}
	if stats[1].Rejected != 2 || stats[1].Sent != 0 {
		t.Errorf("reject sink stats = %+v", stats[1])
	}
	if stats[2].Failed != 2 || stats[2].LastError == "" {
		t.Errorf("dead sink stats = %+v", stats[2])
	}
	for _, st := range stats {
		if st.LastEvent == nil || st.LastEvent.Secret != "" {
			t.Errorf("%s LastEvent = %+v, want a redacted event", st.Name, st.LastEvent)
		}
	}
}

func TestReportDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	sink := &blockingSink{release: release}
	r := New(5*time.Second, sink)

	start := time.Now()
	r.Report(models.NewActiveEvent("s", 1, "Editor"))
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Report() blocked for %v", elapsed)
	}

	close(release)
	flush(t, r)

	if got := r.Stats()[0].Sent; got != 1 {
		t.Errorf("Sent = %d, want 1", got)
	}
}

func TestDeliveryTimeoutBoundsSink(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	r := New(50*time.Millisecond, sink)

	r.Report(models.NewActiveEvent("s", 1, "Editor"))
	flush(t, r)

	st := r.Stats()[0]
	if st.Failed != 1 || !strings.Contains(st.LastError, context.DeadlineExceeded.Error()) {
		t.Errorf("stats = %+v, want one deadline failure", st)
	}
}

func TestFlushGivesUp(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	r := New(time.Minute, &blockingSink{release: release, ignoreCtx: true})

	r.Report(models.NewActiveEvent("s", 1, "Editor"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Flush(ctx); err == nil {
		t.Error("Flush() error = nil with a stuck delivery, want error")
	}
}

func TestReportAfterFlushDropped(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	close(sink.release)
	r := New(time.Second, sink)

	flush(t, r)
	r.Report(models.NewActiveEvent("s", 1, "Editor"))
	flush(t, r)

	if got := sink.calls(); got != 0 {
		t.Errorf("sink called %d times after Flush, want 0", got)
	}
}

func TestEncodeMirrorEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := encodeMirrorEvent(models.NewActiveEvent("s3cret", 2, "Browser"), at)
	if err != nil {
		t.Fatalf("encodeMirrorEvent() error: %v", err)
	}

	want := `{"device":2,"status":1,"app":"Browser","at":"2024-05-01T12:00:00Z"}`
	if string(data) != want {
		t.Errorf("encodeMirrorEvent() = %s, want %s", data, want)
	}
}

func TestNewNATSSinkUnreachable(t *testing.T) {
	if _, err := NewNATSSink("nats://127.0.0.1:1", "sleepy.device.1.status"); err == nil {
		t.Error("NewNATSSink() error = nil for an unreachable server, want error")
	}
}

type namedSink struct {
	Sink
	name string
}

func (s *namedSink) Name() string { return s.name }

type blockingSink struct {
	release   chan struct{}
	ignoreCtx bool

	mu sync.Mutex
	n  int
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Send(ctx context.Context, event models.StatusEvent) error {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()

	if s.ignoreCtx {
		<-s.release
		return nil
	}
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *blockingSink) Close() error { return nil }

func (s *blockingSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
