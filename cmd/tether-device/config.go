package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TransportKind selects how the device reaches the gateway.
type TransportKind string

const (
	TransportTCP  TransportKind = "tcp"
	TransportMQTT TransportKind = "mqtt"
)

// Config holds the device configuration. Values come from the YAML
// config file, overridden by command-line flags.
type Config struct {
	// Name is the device name announced at registration.
	Name string `yaml:"name"`

	// Gateway is the gateway address as "host:port". Empty means
	// discover one with mDNS.
	Gateway string `yaml:"gateway"`

	// Transport selects tcp or mqtt.
	Transport TransportKind `yaml:"transport"`

	// Broker is the MQTT broker URL, for the mqtt transport.
	Broker string `yaml:"broker"`

	// StateFile is where credentials are persisted.
	StateFile string `yaml:"state_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Tick is the protocol machine pacing interval.
	Tick time.Duration `yaml:"tick"`

	// Thermo configures the simulated thermometer channel.
	Thermo ThermoConfig `yaml:"thermo"`
}

// ThermoConfig tunes the simulated thermometer's event reporting.
type ThermoConfig struct {
	// Period is the periodic report interval.
	Period time.Duration `yaml:"period"`

	// UpperLimit and LowerLimit bound the alarm thresholds, in
	// degrees Celsius.
	UpperLimit int32 `yaml:"upper_limit"`
	LowerLimit int32 `yaml:"lower_limit"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	stateDir, err := os.UserConfigDir()
	if err != nil {
		stateDir = "."
	}
	return Config{
		Name:      "tether-device",
		Transport: TransportTCP,
		Broker:    "tcp://localhost:1883",
		StateFile: filepath.Join(stateDir, "tether", "credentials.json"),
		LogLevel:  "info",
		Tick:      100 * time.Millisecond,
		Thermo: ThermoConfig{
			Period:     30 * time.Second,
			UpperLimit: 40,
			LowerLimit: 5,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Transport {
	case TransportTCP, TransportMQTT:
	default:
		return fmt.Errorf("unknown transport: %s", c.Transport)
	}
	if c.Name == "" {
		return fmt.Errorf("device name must not be empty")
	}
	if c.Thermo.Period <= 0 {
		return fmt.Errorf("thermo period must be positive, got %s", c.Thermo.Period)
	}
	if c.Thermo.LowerLimit >= c.Thermo.UpperLimit {
		return fmt.Errorf("thermo limits inverted: lower %d >= upper %d",
			c.Thermo.LowerLimit, c.Thermo.UpperLimit)
	}
	return nil
}
