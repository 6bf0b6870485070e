// Package daemon manages the StoryPets engine lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all engine configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Store     StoreConfig     `toml:"store"`
	Engine    EngineConfig    `toml:"engine"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StoreConfig controls the document store location.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// EngineConfig tunes the sync layer.
type EngineConfig struct {
	// RolloverThrottle is the minimum gap between rollover attempts,
	// e.g. "60s". Shorten it only in tests.
	RolloverThrottle string `toml:"rollover_throttle"`
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7420,
		},
		Store: StoreConfig{
			Dir: filepath.Join(storypetsHome(), "data"),
		},
		Engine: EngineConfig{
			RolloverThrottle: "60s",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads config from ~/.storypets/config.toml, falling back to
// defaults when no file exists yet.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(storypetsHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.storypets/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(storypetsHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// RolloverThrottleDuration parses the throttle, with a fallback.
func (c Config) RolloverThrottleDuration() time.Duration {
	d, err := time.ParseDuration(c.Engine.RolloverThrottle)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// storypetsHome returns the StoryPets data directory.
func storypetsHome() string {
	if env := os.Getenv("STORYPETS_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".storypets")
}

// Home is exported for use by other packages.
func Home() string {
	return storypetsHome()
}
