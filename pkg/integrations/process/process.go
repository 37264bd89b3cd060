// Package process resolves window owner PIDs to process names.
package process

import (
	"strings"

	"github.com/pkg/errors"
	gops "github.com/shirou/gopsutil/v3/process"

	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

// Name returns the executable name of the process with the given PID.
func Name(pid int32) (string, error) {
	if pid <= 0 {
		return "", errors.Errorf("invalid pid %d", pid)
	}

	proc, err := gops.NewProcess(pid)
	if err != nil {
		return "", errors.Wrapf(err, "failed to find process %d", pid)
	}

	name, err := proc.Name()
	if err != nil {
		return "", errors.Wrapf(err, "failed to read name of process %d", pid)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Errorf("process %d has no name", pid)
	}
	return name, nil
}

// Fill sets info.ProcessName from info.PID when it is not already known.
// Lookup failures leave the field empty; the process may have exited between
// the window query and this call.
func Fill(info *window.WindowInfo) {
	if info == nil || info.ProcessName != "" || info.PID <= 0 {
		return
	}
	if name, err := Name(info.PID); err == nil {
		info.ProcessName = name
	}
}
