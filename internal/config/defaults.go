package config

import (
	"time"

	"github.com/leapstack-labs/bizforecast/pkg/core"
)

// Default configuration values.
const (
	DefaultDatabase     = "data/bizforecast.db"
	DefaultDataDir      = "data"
	DefaultOutput       = "auto" // TTY=table, otherwise json
	DefaultPort         = 8080
	DefaultMaxAttempts  = 5
	DefaultBaseDelay    = 100 * time.Millisecond
	DefaultBOMStrategy  = string(core.BOMStrategyVersioned)
	DefaultFallbackRate = core.DefaultFallbackHourRate
)

// Output formats.
const (
	OutputAuto  = "auto"
	OutputTable = "table"
	OutputJSON  = "json"
)

// Defaults returns the default configuration as a flat koanf key map.
func Defaults() map[string]any {
	return map[string]any{
		"database":                     DefaultDatabase,
		"data_dir":                     DefaultDataDir,
		"verbose":                      false,
		"output":                       DefaultOutput,
		"forecast.bom_strategy":        DefaultBOMStrategy,
		"forecast.fallback_labor_rate": DefaultFallbackRate,
		"retry.max_attempts":           DefaultMaxAttempts,
		"retry.base_delay":             DefaultBaseDelay.String(),
		"server.port":                  DefaultPort,
		"server.watch":                 false,
	}
}

// Default returns a Config populated with the defaults, paths unresolved.
func Default() *Config {
	return &Config{
		Database:     DefaultDatabase,
		DataDir:      DefaultDataDir,
		OutputFormat: DefaultOutput,
		Forecast: ForecastConfig{
			BOMStrategy:       DefaultBOMStrategy,
			FallbackLaborRate: DefaultFallbackRate,
		},
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   DefaultBaseDelay,
		},
		Server: ServerConfig{Port: DefaultPort},
	}
}
