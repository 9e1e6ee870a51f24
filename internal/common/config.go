package common

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/colligo/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Capture     CaptureConfig   `toml:"capture"`
	Render      RenderConfig    `toml:"render"`
	Retention   RetentionConfig `toml:"retention"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// CaptureConfig carries the default capture options applied when a caller
// leaves fields unset on crawl.start
type CaptureConfig struct {
	Defaults models.CaptureOptions `toml:"defaults"`
}

// RenderConfig configures the chromedp render slot pool
type RenderConfig struct {
	UserAgent                string        `toml:"user_agent"`
	Headless                 bool          `toml:"headless"`
	DisableGPU               bool          `toml:"disable_gpu"`
	NoSandbox                bool          `toml:"no_sandbox"`
	LoadEventBudget          time.Duration `toml:"load_event_budget"`          // phase 1: wait for load event
	QuiescenceBudget         time.Duration `toml:"quiescence_budget"`          // phase 2: network idle + DOM quiescence
	ContentStabilityBudget   time.Duration `toml:"content_stability_budget"`   // phase 3: innerText length plateau
	ContentStabilityInterval time.Duration `toml:"content_stability_interval"` // phase 3 poll tick
	ContentStabilityWindow   time.Duration `toml:"content_stability_window"`   // phase 3 unchanged-for window
	RenderWallClockCap       time.Duration `toml:"render_wall_clock_cap"`      // hard per-URL cap
}

// RetentionConfig controls the error-log retention sweeper
type RetentionConfig struct {
	Schedule string `toml:"schedule"` // cron expression, default hourly
}

// LoadFromFile loads configuration from a TOML file, applying defaults for
// unset fields. A missing file yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides for deployment
// settings that commonly differ per host
func applyEnvOverrides(config *Config) {
	if path := os.Getenv("COLLIGO_DB_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Validate checks configuration invariants not covered by option validation
func (c *Config) Validate() error {
	if c.Storage.Badger.Path == "" {
		return fmt.Errorf("storage.badger.path is required")
	}
	if c.Render.ContentStabilityInterval <= 0 {
		return fmt.Errorf("render.content_stability_interval must be positive")
	}
	if c.Render.RenderWallClockCap > 60*time.Second {
		return fmt.Errorf("render.render_wall_clock_cap must not exceed 60s")
	}
	return nil
}
