// Package config loads bizforecast CLI configuration.
//
// The shared configuration types live in internal/config and are
// re-exported here via type aliases so commands need only one import.
package config

import sharedcfg "github.com/leapstack-labs/bizforecast/internal/config"

// Config is an alias for the shared configuration.
type Config = sharedcfg.Config

// Default configuration values, re-exported from internal/config.
const (
	DefaultDatabase = sharedcfg.DefaultDatabase
	DefaultDataDir  = sharedcfg.DefaultDataDir
	DefaultOutput   = sharedcfg.DefaultOutput
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "BIZFORECAST_"

// flagKeys maps CLI flag names onto config keys where they differ from
// the kebab-to-snake transform.
var flagKeys = map[string]string{
	"bom-strategy":        "forecast.bom_strategy",
	"fallback-labor-rate": "forecast.fallback_labor_rate",
	"port":                "server.port",
	"watch":               "server.watch",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return sharedcfg.Default()
}
