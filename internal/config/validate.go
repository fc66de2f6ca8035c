package config

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if _, err := core.ParseBOMStrategy(c.Forecast.BOMStrategy); err != nil {
		return fmt.Errorf("forecast.bom_strategy: %w", err)
	}
	if c.Forecast.FallbackLaborRate != "" {
		d, err := decimal.NewFromString(c.Forecast.FallbackLaborRate)
		if err != nil {
			return fmt.Errorf("forecast.fallback_labor_rate: %q is not a number", c.Forecast.FallbackLaborRate)
		}
		if !d.IsPositive() {
			return fmt.Errorf("forecast.fallback_labor_rate must be positive, got %s", d)
		}
	}
	switch c.OutputFormat {
	case "", OutputAuto, OutputTable, OutputJSON:
	default:
		return fmt.Errorf("unknown output format %q (want auto|table|json)", c.OutputFormat)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be positive, got %s", c.Retry.BaseDelay)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// ValidateDataDir checks that the flat-file directory exists.
func (c *Config) ValidateDataDir() error {
	info, err := os.Stat(c.DataDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("data directory does not exist: %s\nHint: Create the directory or use --data-dir to specify a different path", c.DataDir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("data_dir is not a directory: %s", c.DataDir)
	}
	return nil
}
