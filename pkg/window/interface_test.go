package window

import (
	"errors"
	"testing"
	"time"
)

type MockDetector struct {
	windowInfo    *WindowInfo
	windowErr     error
	idleTime      time.Duration
	isAvailable   bool
	displayServer string
	closeError    error
}

func (m *MockDetector) GetFocusedWindow() (*WindowInfo, error) {
	return m.windowInfo, m.windowErr
}

func (m *MockDetector) GetIdleTime() (time.Duration, error) {
	return m.idleTime, nil
}

func (m *MockDetector) IsAvailable() bool {
	return m.isAvailable
}

func (m *MockDetector) GetDisplayServer() string {
	return m.displayServer
}

func (m *MockDetector) Close() error {
	return m.closeError
}

func TestMockDetector(t *testing.T) {
	var _ Detector = (*MockDetector)(nil)

	mock := &MockDetector{
		windowInfo: &WindowInfo{
			AppName:       "TestApp",
			WindowTitle:   "Test Window",
			ProcessName:   "test",
			DisplayServer: "x11",
		},
		idleTime:      30 * time.Second,
		isAvailable:   true,
		displayServer: "x11",
	}

	windowInfo, err := mock.GetFocusedWindow()
	if err != nil {
		t.Errorf("GetFocusedWindow() error: %v", err)
	}
	if windowInfo.Label() != "Test Window" {
		t.Errorf("Label() = %s, want Test Window", windowInfo.Label())
	}

	idle, err := mock.GetIdleTime()
	if err != nil {
		t.Errorf("GetIdleTime() error: %v", err)
	}
	if idle != 30*time.Second {
		t.Errorf("GetIdleTime() = %v, want 30s", idle)
	}

	if err := mock.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestWindowInfoLabel(t *testing.T) {
	tests := []struct {
		name string
		info *WindowInfo
		want string
	}{
		{
			name: "Title wins",
			info: &WindowInfo{WindowTitle: "main.go - Editor", ProcessName: "code", AppName: "Code"},
			want: "main.go - Editor",
		},
		{
			name: "Process name when title is empty",
			info: &WindowInfo{ProcessName: "firefox", AppName: "Navigator"},
			want: "firefox",
		},
		{
			name: "Class as last resort",
			info: &WindowInfo{AppName: "kitty"},
			want: "kitty",
		},
		{
			name: "Nothing known",
			info: &WindowInfo{},
			want: "",
		},
		{
			name: "Nil info",
			info: nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectorError(t *testing.T) {
	mock := &MockDetector{windowErr: errors.New("no active window")}

	info, err := mock.GetFocusedWindow()
	if err == nil {
		t.Fatal("GetFocusedWindow() error = nil, want error")
	}
	if info.Label() != "" {
		t.Errorf("Label() on failed lookup = %q, want empty", info.Label())
	}
}

func BenchmarkWindowInfoLabel(b *testing.B) {
	info := &WindowInfo{ProcessName: "test", DisplayServer: "x11"}
	for i := 0; i < b.N; i++ {
		_ = info.Label()
	}
}
