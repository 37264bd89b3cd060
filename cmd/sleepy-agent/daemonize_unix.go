//go:build unix

package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/sleepy-project/sleepy-agent/internal/config"
)

// daemonize re-executes the binary detached from the terminal
func daemonize(cfg *config.Config, withWeb bool) {
	env := append(os.Environ(), daemonChildEnv+"=1")

	procAttr := &os.ProcAttr{
		Env:   env,
		Files: []*os.File{nil, nil, nil}, // stdin, stdout, stderr to /dev/null
		Sys: &syscall.SysProcAttr{
			Setsid: true, // Create new session
		},
	}

	process, err := os.StartProcess(executable(), os.Args, procAttr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start daemon process")
	}

	printStarted(cfg, process.Pid, withWeb)
}

func executable() string {
	if path, err := os.Executable(); err == nil {
		return path
	}
	return os.Args[0]
}

func printStarted(cfg *config.Config, pid int, withWeb bool) {
	fmt.Printf("sleepy-agent started (PID: %d)\n", pid)
	if withWeb {
		fmt.Printf("Status API available at: http://%s:%d/api/status\n", cfg.Web.Host, cfg.Web.Port)
	}
	fmt.Printf("Logs: %s\n", cfg.Log.File)
}
