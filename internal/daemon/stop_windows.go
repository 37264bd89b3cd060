package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gops "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"
)

// A detached agent has no console to deliver Ctrl events to, so stop
// requests go through a named event owned by the agent.
func stopEventName(pid int) string {
	return fmt.Sprintf(`Local\sleepy-agent-stop-%d`, pid)
}

// StopContext returns a context that is cancelled on Ctrl+C or when another
// process calls Stop for this agent.
func StopContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stopSignals := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	name, err := windows.UTF16PtrFromString(stopEventName(os.Getpid()))
	if err != nil {
		return ctx, stopSignals
	}
	event, err := windows.CreateEvent(nil, 1, 0, name)
	if err != nil && err != windows.ERROR_ALREADY_EXISTS {
		log.Warn().Err(err).Msg("Stop event unavailable, only Ctrl+C will stop the agent")
		return ctx, stopSignals
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer windows.CloseHandle(event)
		for ctx.Err() == nil {
			ret, err := windows.WaitForSingleObject(event, 250)
			if err != nil {
				log.Warn().Err(err).Msg("Waiting on stop event failed")
				return
			}
			if ret == windows.WAIT_OBJECT_0 {
				log.Info().Msg("Stop requested")
				cancel()
				return
			}
		}
	}()

	return ctx, func() {
		cancel()
		stopSignals()
	}
}

func requestStop(proc *gops.Process) error {
	name, err := windows.UTF16PtrFromString(stopEventName(int(proc.Pid)))
	if err != nil {
		return err
	}

	event, err := windows.OpenEvent(windows.EVENT_MODIFY_STATE, false, name)
	if err != nil {
		return errors.Wrap(err, "agent is not listening for stop requests")
	}
	defer windows.CloseHandle(event)

	return errors.Wrap(windows.SetEvent(event), "failed to signal stop event")
}
