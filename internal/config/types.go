// Package config defines bizforecast configuration and its defaults.
// Loading from files, the environment and flags lives in internal/cli/config;
// this package stays free of CLI concerns so the API server can share it.
package config

import (
	"time"

	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
)

// Config holds all bizforecast configuration options.
type Config struct {
	Database     string         `koanf:"database"`
	DataDir      string         `koanf:"data_dir"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`
	Forecast     ForecastConfig `koanf:"forecast"`
	Retry        RetryConfig    `koanf:"retry"`
	Server       ServerConfig   `koanf:"server"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// ForecastConfig tunes the cost engine.
type ForecastConfig struct {
	BOMStrategy       string `koanf:"bom_strategy"`
	FallbackLaborRate string `koanf:"fallback_labor_rate"`
}

// RetryConfig tunes retries on a locked or busy database.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
}

// ServerConfig holds configuration for the HTTP API server.
type ServerConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// Strategy returns the parsed BOM strategy, versioned when unset or invalid.
// Validate reports invalid values.
func (c *Config) Strategy() core.BOMStrategy {
	s, err := core.ParseBOMStrategy(c.Forecast.BOMStrategy)
	if err != nil {
		return core.BOMStrategyVersioned
	}
	return s
}

// FallbackRate returns the configured fallback labor rate, or the default.
func (c *Config) FallbackRate() decimal.Decimal {
	if d, err := decimal.NewFromString(c.Forecast.FallbackLaborRate); err == nil && d.IsPositive() {
		return d
	}
	return decimal.RequireFromString(core.DefaultFallbackHourRate)
}

// RetryPolicy converts the retry settings for the store.
func (c *Config) RetryPolicy() store.RetryPolicy {
	return store.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
	}
}
