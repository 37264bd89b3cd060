package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// LoadFromEnv loads configuration from environment variables.
// Environment variables override file and default values.
func LoadFromEnv(cfg *Config) error {
	// Remote configuration
	if server := os.Getenv("SLEEPY_SERVER"); server != "" {
		cfg.Remote.Server = server
	}

	if secret := os.Getenv("SLEEPY_SECRET"); secret != "" {
		cfg.Remote.Secret = secret
	}

	if device := os.Getenv("SLEEPY_DEVICE"); device != "" {
		id, err := strconv.Atoi(device)
		if err != nil {
			return errors.Wrapf(err, "invalid SLEEPY_DEVICE %q", device)
		}
		cfg.Remote.Device = id
	}

	// Poll configuration
	durations := []struct {
		name   string
		target *time.Duration
	}{
		{"SLEEPY_ACTIVE_INTERVAL", &cfg.Poll.ActiveInterval},
		{"SLEEPY_IDLE_INTERVAL", &cfg.Poll.IdleInterval},
		{"SLEEPY_IDLE_THRESHOLD", &cfg.Poll.IdleEnterThreshold},
		{"SLEEPY_REPORT_TIMEOUT", &cfg.Report.Timeout},
	}
	for _, d := range durations {
		value := os.Getenv(d.name)
		if value == "" {
			continue
		}
		parsed, err := ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", d.name)
		}
		*d.target = parsed
	}

	// Report configuration
	if offline := os.Getenv("SLEEPY_OFFLINE_ON_EXIT"); offline != "" {
		val, err := strconv.ParseBool(offline)
		if err != nil {
			return errors.Wrapf(err, "invalid SLEEPY_OFFLINE_ON_EXIT %q", offline)
		}
		cfg.Report.OfflineOnExit = val
	}

	if natsURL := os.Getenv("SLEEPY_NATS_URL"); natsURL != "" {
		cfg.Report.NATS.URL = natsURL
	}

	// Daemon configuration
	if pidFile := os.Getenv("SLEEPY_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	// Web configuration
	if webHost := os.Getenv("SLEEPY_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}

	if webPort := os.Getenv("SLEEPY_WEB_PORT"); webPort != "" {
		port, err := strconv.Atoi(webPort)
		if err != nil {
			return errors.Wrapf(err, "invalid SLEEPY_WEB_PORT %q", webPort)
		}
		cfg.Web.Port = port
	}

	// Log configuration
	if level := os.Getenv("SLEEPY_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if file := os.Getenv("SLEEPY_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}

	return nil
}

// ParseDuration accepts Go duration strings ("5m", "45s") and bare integers,
// which are read as milliseconds.
func ParseDuration(value string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Errorf("%q is neither a duration nor a number of milliseconds", value)
	}
	return d, nil
}
