package detector

import (
	"github.com/pkg/errors"

	"github.com/sleepy-project/sleepy-agent/pkg/integrations/win32"
	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

func newPlatformDetector() (window.Detector, error) {
	d := win32.NewDetector()
	if !d.IsAvailable() {
		return nil, errors.New("user32 window functions are not available")
	}
	return d, nil
}
