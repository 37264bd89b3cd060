package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/sleepy-project/sleepy-agent/internal/sensor"
	"github.com/sleepy-project/sleepy-agent/pkg/detector"
	"github.com/sleepy-project/sleepy-agent/pkg/utils"
)

// probe prints what the sensors see so detection can be checked before the
// agent is started.
func probe(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	duration := fs.DurationP("duration", "d", 30*time.Second, "How long to sample")
	interval := fs.DurationP("interval", "i", 2*time.Second, "Time between samples")
	_ = fs.Parse(args)

	det, err := detector.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create detector")
	}
	defer det.Close()

	idle := sensor.NewIdle(det)
	activity := sensor.NewActivity(det)

	fmt.Printf("Display Server: %s\n", det.GetDisplayServer())
	fmt.Printf("Sampling for %v, switch between applications to test detection\n\n", *duration)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	timeout := time.After(*duration)
	count := 0

	for {
		select {
		case <-timeout:
			fmt.Println("\nProbe completed")
			return

		case <-ticker.C:
			count++
			info, err := det.GetFocusedWindow()
			if err != nil {
				fmt.Printf("[%d] Window error: %v\n", count, err)
			} else {
				fmt.Printf("[%d] App: %-20s | Process: %-16s | Title: %s\n",
					count,
					utils.Truncate(info.AppName, 20),
					utils.Truncate(info.ProcessName, 16),
					utils.Truncate(info.WindowTitle, 50),
				)
			}
			fmt.Printf("     Label: %q, Idle: %s, Backend: %s\n",
				utils.Truncate(activity.ForegroundLabel(), 60),
				utils.FormatDuration(idle.IdleDuration()),
				detector.Backend(det))
		}
	}
}
