package hybrid

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sleepy-project/sleepy-agent/pkg/integrations/wayland"
	"github.com/sleepy-project/sleepy-agent/pkg/integrations/x11"
	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

// Detector combines the Linux detectors, preferring the one that matches the
// session type and falling back to the other (XWayland keeps X11 useful
// under Wayland for X clients).
type Detector struct {
	detectors []window.Detector

	mu                   sync.Mutex
	lastSuccessfulMethod string
}

// NewDetector builds a detector from every backend available on this system.
func NewDetector() (*Detector, error) {
	d := &Detector{}

	for _, det := range candidates() {
		if det.IsAvailable() {
			d.detectors = append(d.detectors, det)
			log.Debug().Str("backend", det.GetDisplayServer()).Msg("Window detector available")
		} else {
			_ = det.Close()
		}
	}

	if len(d.detectors) == 0 {
		return nil, errors.New("no window detector available (need an X11 display or a supported Wayland compositor)")
	}
	return d, nil
}

func candidates() []window.Detector {
	if isWaylandSession() {
		return []window.Detector{wayland.NewDetector(), x11.NewDetector()}
	}
	return []window.Detector{x11.NewDetector(), wayland.NewDetector()}
}

func isWaylandSession() bool {
	return os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("XDG_SESSION_TYPE") == "wayland"
}

// IsAvailable reports whether at least one backend is usable
func (d *Detector) IsAvailable() bool {
	return len(d.detectors) > 0
}

// GetDisplayServer returns the display server of the preferred backend
func (d *Detector) GetDisplayServer() string {
	if len(d.detectors) == 0 {
		return "unknown"
	}
	return d.detectors[0].GetDisplayServer()
}

// GetFocusedWindow asks each backend in order and returns the first answer
func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	var errs []error
	for _, det := range d.detectors {
		info, err := det.GetFocusedWindow()
		if err == nil && info.Label() != "" {
			d.mu.Lock()
			d.lastSuccessfulMethod = det.GetDisplayServer()
			d.mu.Unlock()
			return info, nil
		}
		if err == nil {
			err = errors.New("empty window information")
		}
		errs = append(errs, errors.Wrap(err, det.GetDisplayServer()))
	}
	return nil, joinErrors("all window detection methods failed", errs)
}

// GetIdleTime returns the first idle reading any backend can produce
func (d *Detector) GetIdleTime() (time.Duration, error) {
	var errs []error
	for _, det := range d.detectors {
		idle, err := det.GetIdleTime()
		if err == nil {
			return idle, nil
		}
		errs = append(errs, errors.Wrap(err, det.GetDisplayServer()))
	}
	return 0, joinErrors("all idle detection methods failed", errs)
}

// LastSuccessfulMethod names the backend that produced the last window, or
// "" before the first successful query.
func (d *Detector) LastSuccessfulMethod() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSuccessfulMethod
}

// Close closes every backend
func (d *Detector) Close() error {
	for _, det := range d.detectors {
		if err := det.Close(); err != nil {
			log.Warn().Err(err).Str("backend", det.GetDisplayServer()).Msg("Error closing window detector")
		}
	}
	return nil
}

func joinErrors(msg string, errs []error) error {
	if len(errs) == 0 {
		return errors.New(msg)
	}
	err := errs[0]
	for _, e := range errs[1:] {
		err = errors.Errorf("%v; %v", err, e)
	}
	return errors.Wrap(err, msg)
}
