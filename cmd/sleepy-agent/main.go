package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/sleepy-project/sleepy-agent/internal/config"
	"github.com/sleepy-project/sleepy-agent/internal/daemon"
	"github.com/sleepy-project/sleepy-agent/internal/logging"
	"github.com/sleepy-project/sleepy-agent/internal/reporter"
	"github.com/sleepy-project/sleepy-agent/internal/sensor"
	"github.com/sleepy-project/sleepy-agent/internal/tracker"
	"github.com/sleepy-project/sleepy-agent/internal/version"
	"github.com/sleepy-project/sleepy-agent/internal/web"
	"github.com/sleepy-project/sleepy-agent/pkg/detector"
	"github.com/sleepy-project/sleepy-agent/pkg/utils"
)

const (
	daemonChildEnv = "SLEEPY_DAEMON_CHILD"
	flushTimeout   = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command, args := os.Args[1], os.Args[2:]

	switch command {
	case "start":
		startAgent(command, args, false)
	case "serve":
		startAgent(command, args, true)
	case "stop":
		stopAgent(args)
	case "status":
		showStatus(args)
	case "probe":
		probe(args)
	case "version":
		showVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`sleepy-agent - Presence reporter for sleepy status pages

Usage:
  sleepy-agent <command> [options]

Commands:
  start              Start the presence agent in the background
  serve              Start the agent with the local status API
  stop               Stop the running agent (reports the device offline)
  status             Show agent status and the current sensor readings
  probe              Sample idle time and the focused window for a while
  version            Show version information
  help               Show this help message

Options:
  -c, --config PATH  Config file (.yaml, or .ini with a [Main] section)
  -f, --foreground   Run in the foreground, logging to the terminal
  -p, --port PORT    Status API port (serve only)

Examples:
  sleepy-agent start
  sleepy-agent serve --port 17001
  sleepy-agent start -f -c ./config.ini
  sleepy-agent probe --duration 1m
  sleepy-agent stop

Environment Variables:
  SLEEPY_CONFIG              Config file path
  SLEEPY_SERVER              Endpoint status events are POSTed to
  SLEEPY_SECRET              Shared secret sent with every report
  SLEEPY_DEVICE              Device id
  SLEEPY_ACTIVE_INTERVAL     Active poll interval (e.g. 5m, or milliseconds)
  SLEEPY_IDLE_INTERVAL       Idle poll interval (e.g. 45s)
  SLEEPY_IDLE_THRESHOLD      Idle time before reporting asleep (e.g. 15m)
  SLEEPY_REPORT_TIMEOUT      Timeout for a single report
  SLEEPY_OFFLINE_ON_EXIT     Report asleep on shutdown (true/false)
  SLEEPY_NATS_URL            Mirror status events to this NATS server
  SLEEPY_PID_FILE            PID file path
  SLEEPY_LOG_LEVEL           Log level (debug, info, warn, error)

Version: %s
`, version.Version)
}

func mustLoadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// loadConfigLenient is for commands that only need local paths and must work
// even when the remote settings are incomplete.
func loadConfigLenient(path string) *config.Config {
	if cfg, err := config.Load(path); err == nil {
		return cfg
	}
	cfg := config.Default()
	_ = config.LoadFromEnv(cfg)
	return cfg
}

func startAgent(command string, args []string, withWeb bool) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path to config file")
	foreground := fs.BoolP("foreground", "f", false, "Run in the foreground")
	port := 0
	if withWeb {
		fs.IntVarP(&port, "port", "p", 0, "Status API port")
	}
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	if port > 0 {
		if err := cfg.SetWebPort(port); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid port: %v\n", err)
			os.Exit(1)
		}
	}

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check daemon status")
	}
	if running {
		log.Fatal().Int("pid", pid).Msg("sleepy-agent is already running")
	}

	if !*foreground && os.Getenv(daemonChildEnv) != "1" {
		daemonize(cfg, withWeb)
		return
	}

	if err := runAgent(cfg, dm, withWeb, *foreground); err != nil {
		log.Fatal().Err(err).Msg("Agent failed")
	}
}

func runAgent(cfg *config.Config, dm *daemon.Daemon, withWeb, foreground bool) error {
	logCloser, err := logging.Setup(cfg.Log, foreground)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	det, err := detector.New()
	if err != nil {
		return errors.Wrap(err, "failed to initialize window detector")
	}
	defer det.Close()

	log.Info().Str("display_server", det.GetDisplayServer()).Msg("Window detector initialized")

	if err := dm.Acquire(); err != nil {
		return err
	}
	defer dm.RemovePID()

	rep := reporter.New(cfg.Report.Timeout, buildSinks(cfg)...)
	defer rep.Close()

	svc := tracker.NewService(cfg, sensor.NewIdle(det), sensor.NewActivity(det), rep)

	ctx, stop := daemon.StopContext(context.Background())
	defer stop()

	var webServer *web.Server
	if withWeb {
		webServer = web.NewServer(cfg, rep, func() string { return detector.Backend(det) }, 0)
		go func() {
			if err := webServer.Start(); err != nil {
				log.Error().Err(err).Msg("Status API error")
			}
		}()
		log.Info().Str("addr", "http://"+webServer.GetAddress()).Msg("Status API available")
	}

	log.Info().Str("version", version.Version).Msg("Starting sleepy-agent")
	log.Debug().Msg(cfg.String())

	// A tick stuck in a platform query must not delay the offline report, so
	// shutdown starts as soon as the stop request arrives.
	trackerDone := make(chan error, 1)
	go func() { trackerDone <- svc.Start(ctx) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-trackerDone:
		if err != nil {
			log.Error().Err(err).Msg("Tracker error")
		}
	}

	svc.Shutdown()

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := rep.Flush(flushCtx); err != nil {
		log.Warn().Err(err).Msg("Final report may not have been delivered")
	}

	if webServer != nil {
		if err := webServer.Shutdown(flushCtx); err != nil {
			log.Warn().Err(err).Msg("Error shutting down status API")
		}
	}

	log.Info().Msg("sleepy-agent stopped")
	return nil
}

func buildSinks(cfg *config.Config) []reporter.Sink {
	sinks := []reporter.Sink{reporter.NewHTTPSink(cfg.Remote.Server, cfg.Report.Timeout)}

	if cfg.Report.NATS.URL != "" {
		ns, err := reporter.NewNATSSink(cfg.Report.NATS.URL, cfg.NATSSubject())
		if err != nil {
			log.Warn().Err(err).Msg("Continuing without NATS mirror")
		} else {
			log.Info().Str("subject", cfg.NATSSubject()).Msg("Mirroring status events to NATS")
			sinks = append(sinks, ns)
		}
	}

	return sinks
}

func stopAgent(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path to config file")
	_ = fs.Parse(args)

	cfg := loadConfigLenient(*configPath)
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check daemon status")
	}

	if !running {
		fmt.Println("sleepy-agent is not running")
		return
	}

	fmt.Printf("Stopping sleepy-agent (PID: %d)...\n", pid)
	if err := dm.Stop(stopTimeout); err != nil {
		log.Fatal().Err(err).Msg("Failed to stop daemon")
	}

	fmt.Println("sleepy-agent stopped")
}

func showStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path to config file")
	_ = fs.Parse(args)

	cfg := loadConfigLenient(*configPath)
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check daemon status")
	}

	if !running {
		fmt.Println("Status: Not running")
	} else {
		fmt.Printf("Status: Running (PID: %d)\n", pid)
		fmt.Printf("Device: %d -> %s\n", cfg.Remote.Device, cfg.ServerHost())
		fmt.Printf("Active Interval: %v, Idle Interval: %v, Idle Threshold: %v\n",
			cfg.Poll.ActiveInterval, cfg.Poll.IdleInterval, cfg.Poll.IdleEnterThreshold)
		printDeliveryStats(cfg)
	}

	det, err := detector.New()
	if err != nil {
		fmt.Printf("\nCould not detect current window: %v\n", err)
		return
	}
	defer det.Close()

	label := sensor.NewActivity(det).ForegroundLabel()
	fmt.Printf("\nCurrent Readings (%s):\n", detector.Backend(det))
	fmt.Printf("  App: %s\n", utils.Truncate(label, 60))
	fmt.Printf("  Idle: %s\n", utils.FormatDuration(sensor.NewIdle(det).IdleDuration()))
}

// printDeliveryStats asks a serve-mode agent for its counters. Agents started
// without the status API simply have nothing to show.
func printDeliveryStats(cfg *config.Config) {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/api/status", cfg.Web.Host, cfg.Web.Port))
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var body struct {
		Uptime string               `json:"uptime"`
		Sinks  []reporter.SinkStats `json:"sinks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return
	}

	fmt.Printf("Uptime: %s\n", body.Uptime)
	for _, s := range body.Sinks {
		fmt.Printf("  %-5s sent=%d rejected=%d failed=%d", s.Name, s.Sent, s.Rejected, s.Failed)
		if s.LastEvent != nil {
			fmt.Printf(" last=%s %q (%s ago)", s.LastEvent.Status, s.LastEvent.App,
				utils.FormatDuration(time.Since(s.LastAt)))
		}
		if s.LastError != "" {
			fmt.Printf(" error=%q", s.LastError)
		}
		fmt.Println()
	}
}

func showVersion() {
	fmt.Printf("sleepy-agent %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
}
