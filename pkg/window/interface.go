package window

import "time"

// UnknownLabel is reported when the foreground window cannot be resolved.
const UnknownLabel = "Unknown"

// WindowInfo represents information about the currently focused window
type WindowInfo struct {
	WindowTitle   string
	AppName       string // WM_CLASS or compositor app id, may be empty
	ProcessName   string
	PID           int32
	DisplayServer string // "x11", "wayland" or "windows"
}

// Label returns the window title, falling back to the process name and then
// the application class. An empty result means nothing usable was found.
func (w *WindowInfo) Label() string {
	if w == nil {
		return ""
	}
	if w.WindowTitle != "" {
		return w.WindowTitle
	}
	if w.ProcessName != "" {
		return w.ProcessName
	}
	return w.AppName
}

// Detector is the interface that all platform detection implementations must satisfy
type Detector interface {
	// GetFocusedWindow returns information about the currently focused window
	GetFocusedWindow() (*WindowInfo, error)

	// GetIdleTime returns the time elapsed since the last keyboard or pointer input
	GetIdleTime() (time.Duration, error)

	// IsAvailable checks if this detector can run on the current system
	IsAvailable() bool

	// GetDisplayServer returns the display server type
	GetDisplayServer() string

	// Close cleans up any resources used by the detector
	Close() error
}
