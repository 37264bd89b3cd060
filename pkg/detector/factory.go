package detector

import (
	"os"
	"runtime"

	"github.com/pkg/errors"

	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

// New returns the best window detector for the current platform.
func New() (window.Detector, error) {
	det, err := newPlatformDetector()
	if err != nil {
		return nil, errors.Wrapf(err, "no window detector for %s session", DetectDisplayServer())
	}
	return det, nil
}

// Backend names the backend currently answering window queries. Detectors
// that combine several backends report the one that last succeeded.
func Backend(det window.Detector) string {
	if h, ok := det.(interface{ LastSuccessfulMethod() string }); ok {
		if method := h.LastSuccessfulMethod(); method != "" {
			return method
		}
	}
	return det.GetDisplayServer()
}

// DetectDisplayServer guesses the display server from the session environment.
func DetectDisplayServer() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}

	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
