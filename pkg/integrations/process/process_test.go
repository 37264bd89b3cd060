package process

import (
	"os"
	"testing"

	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

func TestNameOfSelf(t *testing.T) {
	name, err := Name(int32(os.Getpid()))
	if err != nil {
		t.Skipf("process lookup unavailable: %v", err)
	}
	if name == "" {
		t.Error("Name() returned empty name for the test process")
	}
	t.Logf("Test process name: %s", name)
}

func TestNameInvalidPID(t *testing.T) {
	for _, pid := range []int32{0, -1} {
		if _, err := Name(pid); err == nil {
			t.Errorf("Name(%d) error = nil, want error", pid)
		}
	}
}

func TestFill(t *testing.T) {
	t.Run("Keeps known process name", func(t *testing.T) {
		info := &window.WindowInfo{ProcessName: "editor", PID: int32(os.Getpid())}
		Fill(info)
		if info.ProcessName != "editor" {
			t.Errorf("ProcessName = %s, want editor", info.ProcessName)
		}
	})

	t.Run("No PID leaves name empty", func(t *testing.T) {
		info := &window.WindowInfo{WindowTitle: "Untitled"}
		Fill(info)
		if info.ProcessName != "" {
			t.Errorf("ProcessName = %s, want empty", info.ProcessName)
		}
	})

	t.Run("Nil info", func(t *testing.T) {
		Fill(nil)
	})
}
