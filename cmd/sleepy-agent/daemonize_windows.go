package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows"

	"github.com/sleepy-project/sleepy-agent/internal/config"
)

// daemonize re-executes the binary without a console window
func daemonize(cfg *config.Config, withWeb bool) {
	env := append(os.Environ(), daemonChildEnv+"=1")

	procAttr := &os.ProcAttr{
		Env:   env,
		Files: []*os.File{nil, nil, nil},
		Sys: &syscall.SysProcAttr{
			HideWindow:    true,
			CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		},
	}

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	process, err := os.StartProcess(exe, os.Args, procAttr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start daemon process")
	}

	fmt.Printf("sleepy-agent started (PID: %d)\n", process.Pid)
	if withWeb {
		fmt.Printf("Status API available at: http://%s:%d/api/status\n", cfg.Web.Host, cfg.Web.Port)
	}
	fmt.Printf("Logs: %s\n", cfg.Log.File)
}
