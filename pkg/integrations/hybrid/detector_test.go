package hybrid

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

type stubDetector struct {
	name    string
	info    *window.WindowInfo
	winErr  error
	idle    time.Duration
	idleErr error
	closed  bool
}

func (s *stubDetector) GetFocusedWindow() (*window.WindowInfo, error) { return s.info, s.winErr }
func (s *stubDetector) GetIdleTime() (time.Duration, error)           { return s.idle, s.idleErr }
func (s *stubDetector) IsAvailable() bool                             { return true }
func (s *stubDetector) GetDisplayServer() string                      { return s.name }
func (s *stubDetector) Close() error                                  { s.closed = true; return nil }

func TestFallbackToSecondBackend(t *testing.T) {
	primary := &stubDetector{name: "wayland", winErr: errors.New("eval blocked"), idleErr: errors.New("no logind")}
	secondary := &stubDetector{
		name: "x11",
		info: &window.WindowInfo{WindowTitle: "Terminal", DisplayServer: "x11"},
		idle: 42 * time.Second,
	}
	d := &Detector{detectors: []window.Detector{primary, secondary}}

	info, err := d.GetFocusedWindow()
	if err != nil {
		t.Fatalf("GetFocusedWindow() error: %v", err)
	}
	if info.Label() != "Terminal" {
		t.Errorf("Label() = %s, want Terminal", info.Label())
	}
	if d.LastSuccessfulMethod() != "x11" {
		t.Errorf("LastSuccessfulMethod() = %s, want x11", d.LastSuccessfulMethod())
	}

	idle, err := d.GetIdleTime()
	if err != nil {
		t.Fatalf("GetIdleTime() error: %v", err)
	}
	if idle != 42*time.Second {
		t.Errorf("GetIdleTime() = %v, want 42s", idle)
	}

	if d.GetDisplayServer() != "wayland" {
		t.Errorf("GetDisplayServer() = %s, want wayland", d.GetDisplayServer())
	}
}

func TestLastSuccessfulMethodConcurrentReads(t *testing.T) {
	d := &Detector{detectors: []window.Detector{
		&stubDetector{name: "x11", info: &window.WindowInfo{WindowTitle: "Terminal"}},
	}}

	if got := d.LastSuccessfulMethod(); got != "" {
		t.Errorf("LastSuccessfulMethod() before any query = %q, want empty", got)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = d.GetFocusedWindow()
		}()
		go func() {
			defer wg.Done()
			_ = d.LastSuccessfulMethod()
		}()
	}
	wg.Wait()

	if got := d.LastSuccessfulMethod(); got != "x11" {
		t.Errorf("LastSuccessfulMethod() = %q, want x11", got)
	}
}

func TestAllBackendsFail(t *testing.T) {
	d := &Detector{detectors: []window.Detector{
		&stubDetector{name: "wayland", winErr: errors.New("eval blocked"), idleErr: errors.New("no logind")},
		&stubDetector{name: "x11", info: &window.WindowInfo{}, idleErr: errors.New("no extension")},
	}}

	_, err := d.GetFocusedWindow()
	if err == nil {
		t.Fatal("GetFocusedWindow() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "eval blocked") || !strings.Contains(err.Error(), "empty window information") {
		t.Errorf("GetFocusedWindow() error = %v, want both backend causes", err)
	}

	if _, err := d.GetIdleTime(); err == nil {
		t.Error("GetIdleTime() error = nil, want error")
	}
}

func TestClose(t *testing.T) {
	a, b := &stubDetector{name: "a"}, &stubDetector{name: "b"}
	d := &Detector{detectors: []window.Detector{a, b}}

	if err := d.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("Close() did not close every backend")
	}
}

func TestEmptyDetector(t *testing.T) {
	d := &Detector{}
	if d.IsAvailable() {
		t.Error("IsAvailable() = true with no backends")
	}
	if d.GetDisplayServer() != "unknown" {
		t.Errorf("GetDisplayServer() = %s, want unknown", d.GetDisplayServer())
	}
}

func TestDetectorInterface(t *testing.T) {
	var _ window.Detector = (*Detector)(nil)
}
