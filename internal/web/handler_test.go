package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sleepy-project/sleepy-agent/internal/config"
	"github.com/sleepy-project/sleepy-agent/internal/models"
	"github.com/sleepy-project/sleepy-agent/internal/reporter"
)

type staticStats []reporter.SinkStats

func (s staticStats) Stats() []reporter.SinkStats { return s }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Remote.Server = "https://sleepy.example.com/device/set"
	cfg.Remote.Secret = "s3cret"
	cfg.Remote.Device = 5

	last := models.NewActiveEvent("s3cret", 5, "Editor").Redacted()
	stats := staticStats{{Name: "http", Sent: 3, Rejected: 1, LastEvent: &last}}

	srv := NewServer(cfg, stats, func() string { return "x11" }, 0)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if body.Device != 5 || body.Endpoint != "sleepy.example.com" || body.DisplayServer != "x11" {
		t.Errorf("status = %+v", body)
	}
	if body.Poll.ActiveInterval != "5m0s" || body.Poll.IdleInterval != "45s" || body.Poll.IdleThreshold != "15m0s" {
		t.Errorf("poll = %+v", body.Poll)
	}
	if len(body.Sinks) != 1 || body.Sinks[0].Sent != 3 || body.Sinks[0].Rejected != 1 {
		t.Errorf("sinks = %+v", body.Sinks)
	}
}

func TestStatusReportsCurrentBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.Server = "https://sleepy.example.com/device/set"

	var backend atomic.Value
	backend.Store("wayland")
	srv := NewServer(cfg, staticStats{}, func() string { return backend.Load().(string) }, 0)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)

	get := func() string {
		t.Helper()
		resp, err := http.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error: %v", err)
		}
		defer resp.Body.Close()

		var body statusResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		return body.DisplayServer
	}

	if got := get(); got != "wayland" {
		t.Errorf("display_server = %s, want wayland", got)
	}
	backend.Store("x11")
	if got := get(); got != "x11" {
		t.Errorf("display_server after fallback = %s, want x11", got)
	}
}

func TestStatusNeverLeaksSecret(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error: %v", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if strings.Contains(string(raw), "s3cret") {
		t.Errorf("status response contains the secret: %s", raw)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/status error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
