//go:build !linux && !windows

package detector

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

func newPlatformDetector() (window.Detector, error) {
	return nil, errors.Errorf("no window detector for %s", runtime.GOOS)
}
