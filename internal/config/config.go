package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Config holds all application configuration
type Config struct {
	// Presence service the agent reports to
	Remote RemoteConfig `yaml:"remote"`

	// Polling behavior of the presence tracker
	Poll PollConfig `yaml:"poll"`

	// Report delivery configuration
	Report ReportConfig `yaml:"report"`

	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon"`

	// Local status API configuration
	Web WebConfig `yaml:"web"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// RemoteConfig identifies the endpoint and this device
type RemoteConfig struct {
	Server string `yaml:"server"` // Endpoint URL status events are POSTed to
	Secret string `yaml:"secret"` // Shared secret forwarded verbatim
	Device int    `yaml:"device"` // Device id, must be set explicitly
}

// PollConfig holds the tracker's timer periods. Read-only after startup.
type PollConfig struct {
	ActiveInterval     time.Duration `yaml:"active_interval"`      // Period of the Active-Poll timer
	IdleInterval       time.Duration `yaml:"idle_interval"`        // Period of the Idle-Poll timer
	IdleEnterThreshold time.Duration `yaml:"idle_enter_threshold"` // Idle time that switches the device to asleep
}

// ReportConfig holds report delivery configuration
type ReportConfig struct {
	Timeout       time.Duration `yaml:"timeout"`         // Upper bound for a single delivery
	OfflineOnExit bool          `yaml:"offline_on_exit"` // Send a final asleep report on shutdown
	NATS          NATSConfig    `yaml:"nats"`
}

// NATSConfig configures the optional NATS mirror of status events
type NATSConfig struct {
	URL     string `yaml:"url"`     // Empty disables the mirror
	Subject string `yaml:"subject"` // Defaults to sleepy.device.<device>.status
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `yaml:"pid_file"` // Path to PID file for daemon management
}

// WebConfig holds local status API configuration
type WebConfig struct {
	Host string `yaml:"host"` // Host to bind web server to
	Port int    `yaml:"port"` // Port for web server
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	uid := os.Getuid()

	return &Config{
		Remote: RemoteConfig{
			Device: -1, // unset
		},
		Poll: PollConfig{
			ActiveInterval:     5 * time.Minute,
			IdleInterval:       45 * time.Second,
			IdleEnterThreshold: 15 * time.Minute,
		},
		Report: ReportConfig{
			Timeout:       10 * time.Second,
			OfflineOnExit: true,
		},
		Daemon: DaemonConfig{
			PIDFile: filepath.Join(os.TempDir(), fmt.Sprintf("sleepy-agent-%d.pid", uid)),
		},
		Web: WebConfig{
			Host: "localhost",
			Port: defaultWebPort(uid),
		},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(os.TempDir(), fmt.Sprintf("sleepy-agent-%d.log", uid)),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// defaultWebPort gives every local user their own port
func defaultWebPort(uid int) int {
	if uid < 0 {
		return 17000
	}
	return 17000 + uid%1000
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate remote config
	if c.Remote.Server == "" {
		return errors.New("server is required")
	}
	u, err := url.Parse(c.Remote.Server)
	if err != nil {
		return errors.Wrapf(err, "invalid server URL %q", c.Remote.Server)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("server must be an http or https URL, got %q", c.Remote.Server)
	}

	if c.Remote.Secret == "" {
		return errors.New("secret is required")
	}

	if c.Remote.Device < 0 {
		return errors.New("device is required and must be a non-negative integer")
	}

	// Validate poll intervals
	if c.Poll.ActiveInterval <= 0 {
		return errors.Errorf("active interval must be positive, got %v", c.Poll.ActiveInterval)
	}

	if c.Poll.IdleInterval <= 0 {
		return errors.Errorf("idle interval must be positive, got %v", c.Poll.IdleInterval)
	}

	if c.Poll.IdleEnterThreshold <= 0 {
		return errors.Errorf("idle enter threshold must be positive, got %v", c.Poll.IdleEnterThreshold)
	}

	// Validate report config
	if c.Report.Timeout <= 0 {
		return errors.Errorf("report timeout must be positive, got %v", c.Report.Timeout)
	}

	if c.Report.NATS.URL != "" {
		if _, err := url.Parse(c.Report.NATS.URL); err != nil {
			return errors.Wrapf(err, "invalid NATS URL %q", c.Report.NATS.URL)
		}
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return errors.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return errors.New("web host cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return errors.New("PID file path cannot be empty")
	}

	// Validate log config
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.Log.Level)
	}

	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// NATSSubject returns the subject status events are mirrored to
func (c *Config) NATSSubject() string {
	if c.Report.NATS.Subject != "" {
		return c.Report.NATS.Subject
	}
	return fmt.Sprintf("sleepy.device.%d.status", c.Remote.Device)
}

// ServerHost returns the host part of the server URL, for display.
func (c *Config) ServerHost() string {
	u, err := url.Parse(c.Remote.Server)
	if err != nil {
		return ""
	}
	return u.Host
}

// String returns a string representation of the config. The secret is
// never printed.
func (c *Config) String() string {
	nats := "disabled"
	if c.Report.NATS.URL != "" {
		nats = fmt.Sprintf("%s (%s)", c.Report.NATS.URL, c.NATSSubject())
	}

	return fmt.Sprintf(`Configuration:
  Remote:
    Server: %s
    Secret: %s
    Device: %d
  Poll:
    Active Interval: %v
    Idle Interval: %v
    Idle Enter Threshold: %v
  Report:
    Timeout: %v
    Offline On Exit: %v
    NATS: %s
  Daemon:
    PID File: %s
  Web:
    Host: %s
    Port: %d
  Log:
    Level: %s
    File: %s`,
		c.Remote.Server,
		maskSecret(c.Remote.Secret),
		c.Remote.Device,
		c.Poll.ActiveInterval,
		c.Poll.IdleInterval,
		c.Poll.IdleEnterThreshold,
		c.Report.Timeout,
		c.Report.OfflineOnExit,
		nats,
		c.Daemon.PIDFile,
		c.Web.Host,
		c.Web.Port,
		c.Log.Level,
		c.Log.File,
	)
}

func maskSecret(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return "********"
}
