//go:build !windows

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	gops "github.com/shirou/gopsutil/v3/process"
)

// StopContext returns a context that is cancelled on SIGINT or SIGTERM.
func StopContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func requestStop(proc *gops.Process) error {
	return errors.Wrap(proc.Terminate(), "failed to send SIGTERM")
}
