//go:build windows

package win32

import (
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/sleepy-project/sleepy-agent/pkg/integrations/process"
	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetLastInputInfo         = user32.NewProc("GetLastInputInfo")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetTickCount             = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// Detector implements window.Detector on top of user32.
type Detector struct{}

// NewDetector creates a new Windows detector
func NewDetector() *Detector {
	return &Detector{}
}

// IsAvailable reports whether the user32 entry points can be loaded
func (d *Detector) IsAvailable() bool {
	return procGetForegroundWindow.Find() == nil && procGetLastInputInfo.Find() == nil
}

// GetDisplayServer returns "windows"
func (d *Detector) GetDisplayServer() string {
	return "windows"
}

// GetFocusedWindow returns the title and owning process of the foreground window
func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil, errors.New("no foreground window")
	}

	info := &window.WindowInfo{
		WindowTitle:   windowText(hwnd),
		DisplayServer: "windows",
	}

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	info.PID = int32(pid)
	process.Fill(info)

	if info.Label() == "" {
		return nil, errors.Errorf("foreground window %#x has no title and process %d cannot be resolved", hwnd, pid)
	}
	return info, nil
}

func windowText(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

// GetIdleTime returns the time since the last keyboard or mouse input. Both
// tick counts are 32-bit, so the subtraction wraps correctly after 49.7 days.
func (d *Detector) GetIdleTime() (time.Duration, error) {
	lii := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&lii)))
	if ret == 0 {
		return 0, errors.Wrap(err, "GetLastInputInfo failed")
	}

	now, _, _ := procGetTickCount.Call()
	elapsed := uint32(now) - lii.dwTime
	return time.Duration(elapsed) * time.Millisecond, nil
}

// Close cleans up resources
func (d *Detector) Close() error {
	return nil
}
