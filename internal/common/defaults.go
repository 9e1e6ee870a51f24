// Package common provides shared configuration, logging, and id utilities.
package common

import (
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// DefaultConfig returns the baseline configuration used when no config file
// is present. Values mirror the documented defaults in colligo.toml.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/colligo",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Capture: CaptureConfig{
			Defaults: models.DefaultCaptureOptions(),
		},
		Render: RenderConfig{
			UserAgent:                "Colligo-Capture/1.0",
			Headless:                 true,
			DisableGPU:               true,
			NoSandbox:                false,
			LoadEventBudget:          10 * time.Second,
			QuiescenceBudget:         10 * time.Second,
			ContentStabilityBudget:   10 * time.Second,
			ContentStabilityInterval: 200 * time.Millisecond,
			ContentStabilityWindow:   time.Second,
			RenderWallClockCap:       60 * time.Second,
		},
		Retention: RetentionConfig{
			Schedule: "@hourly",
		},
	}
}
