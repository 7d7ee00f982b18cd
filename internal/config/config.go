// Package config loads the tunables the workers read at startup (LLM
// endpoint/model, insight scheduling thresholds, and logging level); a
// Watcher can reload them when the file changes.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Insight holds the tunables for the insight scheduler and generator:
// active-device threshold, per-tick batch size, and the event-driven daily
// cap per device. Only ActiveThresholdHours is read by a worker
// (cmd/insightscheduler); BatchSize and EventDailyCap are loaded and
// validated, but the generator and the event detector use their own fixed
// values (insight.DefaultBatchSize and a cap of 6).
type Insight struct {
	ActiveThresholdHours int    `yaml:"active_threshold_hours"`
	BatchSize            int    `yaml:"batch_size"`
	EventDailyCap        int    `yaml:"event_daily_cap"`
	LLMEndpoint          string `yaml:"llm_endpoint"`
	LLMModel             string `yaml:"llm_model"`
	// LLMAPIKeyEnv names the environment variable holding the API key; the
	// key itself is never stored in the config file.
	LLMAPIKeyEnv string `yaml:"llm_api_key_env"`
}

// Logging controls the slog handler.
type Logging struct {
	Level string `yaml:"level"`
}

// Metrics controls the metrics.Provider backend.
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Config is the full set of hot-reloadable tunables.
type Config struct {
	Insight Insight `yaml:"insight"`
	Logging Logging `yaml:"logging"`
	Metrics Metrics `yaml:"metrics"`

	Version string `yaml:"version"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Insight.ActiveThresholdHours == 0 {
		c.Insight.ActiveThresholdHours = 24
	}
	if c.Insight.BatchSize == 0 {
		c.Insight.BatchSize = 10
	}
	if c.Insight.EventDailyCap == 0 {
		c.Insight.EventDailyCap = 6
	}
	if c.Insight.LLMAPIKeyEnv == "" {
		c.Insight.LLMAPIKeyEnv = "DIRTMAN_LLM_API_KEY"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "dirtman"
	}
	if c.Version == "" {
		c.Version = "1"
	}
}

// Validate checks invariants that ApplyDefaults cannot repair.
func (c *Config) Validate() error {
	if c.Insight.ActiveThresholdHours <= 0 {
		return fmt.Errorf("config: insight.active_threshold_hours must be positive")
	}
	if c.Insight.BatchSize <= 0 {
		return fmt.Errorf("config: insight.batch_size must be positive")
	}
	if c.Insight.EventDailyCap < 0 {
		return fmt.Errorf("config: insight.event_daily_cap cannot be negative")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("config: invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}

// LLMAPIKey reads the API key from the environment variable named by
// Insight.LLMAPIKeyEnv. An empty result means degraded mode.
func (c *Config) LLMAPIKey() string {
	if c.Insight.LLMAPIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Insight.LLMAPIKeyEnv)
}

// Load reads and parses a YAML config file, applying defaults to anything
// left unset and validating the result. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &c, nil
}

// equal reports whether two configs are value-identical, used by the
// watcher to suppress no-op reload notifications.
func equal(a, b *Config) bool {
	ab, _ := yaml.Marshal(a)
	bb, _ := yaml.Marshal(b)
	return string(ab) == string(bb)
}
