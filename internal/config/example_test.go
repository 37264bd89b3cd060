package config_test

import (
	"fmt"

	"github.com/sleepy-project/sleepy-agent/internal/config"
)

// Example of creating a default configuration
func ExampleDefault() {
	cfg := config.Default()
	fmt.Println("Active Interval:", cfg.Poll.ActiveInterval)
	fmt.Println("Idle Interval:", cfg.Poll.IdleInterval)
	fmt.Println("Idle Enter Threshold:", cfg.Poll.IdleEnterThreshold)
	// Output:
	// Active Interval: 5m0s
	// Idle Interval: 45s
	// Idle Enter Threshold: 15m0s
}

// Example of validating configuration
func ExampleConfig_Validate() {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	}

	cfg.Remote.Server = "https://sleepy.example.com/device/set"
	cfg.Remote.Secret = "changeme"
	cfg.Remote.Device = 0

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	} else {
		fmt.Println("Configuration is valid")
	}

	// Output:
	// Invalid config: server is required
	// Configuration is valid
}

// Example of the default NATS subject
func ExampleConfig_NATSSubject() {
	cfg := config.Default()
	cfg.Remote.Device = 3
	fmt.Println(cfg.NATSSubject())
	// Output:
	// sleepy.device.3.status
}
