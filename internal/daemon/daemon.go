package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gops "github.com/shirou/gopsutil/v3/process"
)

// Daemon manages the PID file that keeps a single agent per user running.
type Daemon struct {
	pidFile string
}

func New(pidFile string) *Daemon {
	return &Daemon{pidFile: pidFile}
}

func (d *Daemon) PIDFile() string {
	return d.pidFile
}

func (d *Daemon) WritePID() error {
	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, fmt.Appendf(nil, "%d", pid), 0644); err != nil {
		return errors.Wrap(err, "failed to write PID file")
	}
	return nil
}

// ReadPID returns 0 when there is no PID file.
func (d *Daemon) ReadPID() (int, error) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to read PID file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrap(err, "invalid PID in file")
	}

	return pid, nil
}

func (d *Daemon) RemovePID() error {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove PID file")
	}
	return nil
}

// IsRunning reports whether the process in the PID file is alive. A stale
// PID file is removed.
func (d *Daemon) IsRunning() (bool, int, error) {
	pid, err := d.ReadPID()
	if err != nil {
		return false, 0, err
	}

	if pid == 0 {
		return false, 0, nil
	}

	exists, err := gops.PidExists(int32(pid))
	if err != nil || !exists {
		_ = d.RemovePID()
		return false, 0, nil
	}

	return true, pid, nil
}

// Acquire claims the PID file for the current process, failing if another
// live agent holds it.
func (d *Daemon) Acquire() error {
	running, pid, err := d.IsRunning()
	if err != nil {
		return err
	}
	if running && pid != os.Getpid() {
		return errors.Errorf("sleepy-agent is already running (PID %d)", pid)
	}
	return d.WritePID()
}

// Stop asks the running agent to shut down so it can send its final offline
// report, and waits up to timeout for it to exit. An agent that does not
// accept the request or outlives the timeout is killed.
func (d *Daemon) Stop(timeout time.Duration) error {
	running, pid, err := d.IsRunning()
	if err != nil {
		return errors.Wrap(err, "error checking daemon status")
	}

	if !running {
		return errors.New("daemon is not running or PID file is stale")
	}

	proc, err := gops.NewProcess(int32(pid))
	if err != nil {
		_ = d.RemovePID()
		return errors.New("daemon process already terminated")
	}

	if err := requestStop(proc); err != nil {
		log.Warn().Err(err).Int("pid", pid).Msg("Graceful stop failed, killing agent")
		return d.kill(proc)
	}

	if waitExit(proc.Pid, timeout) {
		return nil
	}

	log.Warn().Int("pid", pid).Dur("timeout", timeout).Msg("Agent did not exit in time, killing it")
	return d.kill(proc)
}

// kill ends the process without letting it clean up, so the PID file is
// removed here.
func (d *Daemon) kill(proc *gops.Process) error {
	if err := proc.Kill(); err != nil {
		return errors.Wrap(err, "failed to kill agent")
	}
	waitExit(proc.Pid, time.Second)
	return d.RemovePID()
}

func waitExit(pid int32, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		exists, err := gops.PidExists(pid)
		if err == nil && !exists {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
