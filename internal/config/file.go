package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, the config file and the
// environment, then validates it. An explicit path must exist; the default
// locations are optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			if explicit || !os.IsNotExist(errors.Cause(err)) {
				return nil, errors.Wrapf(err, "failed to load config file %s", path)
			}
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load from environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return cfg, nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if path := os.Getenv("SLEEPY_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sleepy-agent", "config.yaml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "sleepy-agent", "config.yaml")
	}

	return ""
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		return loadINI(cfg, data)
	}
	return loadYAML(cfg, data)
}

// yamlDurations lists the YAML keys holding durations.
var yamlDurations = map[string]bool{
	"poll.active_interval":      true,
	"poll.idle_interval":        true,
	"poll.idle_enter_threshold": true,
	"report.timeout":            true,
}

func loadYAML(cfg *Config, data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return errors.Wrap(err, "failed to parse YAML")
	}
	if len(root.Content) == 0 {
		return nil
	}

	msDurations(root.Content[0], "")
	return errors.Wrap(root.Decode(cfg), "failed to parse YAML")
}

// msDurations rewrites bare integers under duration keys as milliseconds,
// matching the INI file and the environment.
func msDurations(node *yaml.Node, prefix string) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := prefix+node.Content[i].Value, node.Content[i+1]
		switch {
		case value.Kind == yaml.MappingNode:
			msDurations(value, key+".")
		case yamlDurations[key] && value.Kind == yaml.ScalarNode && value.ShortTag() == "!!int":
			value.Value += "ms"
			value.Tag = "!!str"
		}
	}
}

// loadINI reads the flat [Main] section used by config.ini files:
//
//	[Main]
//	server = https://sleepy.example.com/device/set
//	secret = changeme
//	device = 0
func loadINI(cfg *Config, data []byte) error {
	file, err := ini.Load(data)
	if err != nil {
		return errors.Wrap(err, "failed to parse INI")
	}

	section, err := file.GetSection("Main")
	if err != nil {
		return errors.Wrap(err, "missing [Main] section")
	}

	if section.HasKey("server") {
		cfg.Remote.Server = section.Key("server").String()
	}
	if section.HasKey("secret") {
		cfg.Remote.Secret = section.Key("secret").String()
	}
	if section.HasKey("device") {
		device, err := section.Key("device").Int()
		if err != nil {
			return errors.Wrap(err, "invalid device")
		}
		cfg.Remote.Device = device
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"active_interval", &cfg.Poll.ActiveInterval},
		{"idle_interval", &cfg.Poll.IdleInterval},
		{"idle_threshold", &cfg.Poll.IdleEnterThreshold},
		{"report_timeout", &cfg.Report.Timeout},
	}
	for _, d := range durations {
		if !section.HasKey(d.key) {
			continue
		}
		parsed, err := ParseDuration(section.Key(d.key).String())
		if err != nil {
			return errors.Wrapf(err, "invalid %s", d.key)
		}
		*d.target = parsed
	}

	if section.HasKey("offline_on_exit") {
		offline, err := section.Key("offline_on_exit").Bool()
		if err != nil {
			return errors.Wrap(err, "invalid offline_on_exit")
		}
		cfg.Report.OfflineOnExit = offline
	}

	return nil
}
