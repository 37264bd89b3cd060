package detector

import (
	"github.com/sleepy-project/sleepy-agent/pkg/integrations/hybrid"
	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

func newPlatformDetector() (window.Detector, error) {
	return hybrid.NewDetector()
}
