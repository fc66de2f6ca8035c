// Package forecast computes per-sale cost and margin from the bill of
// materials, routings, machine rates and labor rates, and persists the
// result as one atomically replaced snapshot.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
)

// Store is the subset of the relational store the cost engine reads and writes.
type Store interface {
	ListSalesLines(ctx context.Context) ([]core.SalesLine, error)
	ListBOMLines(ctx context.Context) ([]core.BOMLine, error)
	ListRouterOperations(ctx context.Context) ([]core.RouterOperation, error)
	ListMachines(ctx context.Context) (map[string]core.Machine, error)
	ListLaborRates(ctx context.Context) (map[string]decimal.Decimal, error)
	AveragePayrollRate(ctx context.Context) (decimal.NullDecimal, error)
	ReplaceForecastResults(ctx context.Context, results []core.ForecastResult) error
	ListForecastResults(ctx context.Context, filter core.ResultFilter) ([]core.ForecastResult, error)
	SummarizeForecastResults(ctx context.Context, period string) (core.ForecastSummary, error)
}

// Config holds cost engine configuration.
type Config struct {
	// Strategy scopes BOM and routing aggregation. Defaults to versioned.
	Strategy core.BOMStrategy
	// FallbackRate is the hourly labor rate used when neither labor_rates
	// nor payroll supply one. Defaults to 25.00.
	FallbackRate decimal.Decimal
	// Clock stamps forecast_date (optional, uses time.Now)
	Clock func() time.Time
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine runs forecast computations. Compute calls are serialized.
type Engine struct {
	store    Store
	strategy core.BOMStrategy
	fallback decimal.Decimal
	clock    func() time.Time
	logger   *slog.Logger
	mu       sync.Mutex
}

// New creates a cost engine.
func New(s Store, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = core.BOMStrategyVersioned
	}
	fallback := cfg.FallbackRate
	if fallback.IsZero() {
		fallback = decimal.RequireFromString(core.DefaultFallbackHourRate)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		store:    s,
		strategy: strategy,
		fallback: fallback,
		clock:    clock,
		logger:   logger,
	}
}

// Strategy returns the BOM strategy the engine aggregates with.
func (e *Engine) Strategy() core.BOMStrategy {
	return e.strategy
}

// Compute prices every sales line and replaces forecast_results with the
// new snapshot. On any failure the previous snapshot is left in place and
// the error wraps core.ErrComputationAborted.
func (e *Engine) Compute(ctx context.Context) (*core.ForecastSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	forecastDate := core.FormatTimestamp(e.clock())
	e.logger.Debug("computing forecast", "strategy", e.strategy, "forecast_date", forecastDate)

	lines, err := e.store.ListSalesLines(ctx)
	if err != nil {
		return nil, abort("read sales", err)
	}
	bomLines, err := e.store.ListBOMLines(ctx)
	if err != nil {
		return nil, abort("read bill of materials", err)
	}
	ops, err := e.store.ListRouterOperations(ctx)
	if err != nil {
		return nil, abort("read router operations", err)
	}
	machines, err := e.store.ListMachines(ctx)
	if err != nil {
		return nil, abort("read machines", err)
	}
	rates, err := e.store.ListLaborRates(ctx)
	if err != nil {
		return nil, abort("read labor rates", err)
	}
	payroll, err := e.store.AveragePayrollRate(ctx)
	if err != nil {
		return nil, abort("read payroll", err)
	}

	avgRate := e.fallback
	if payroll.Valid {
		avgRate = payroll.Decimal
	}

	var warnings []string
	warn := func(msg string) {
		warnings = append(warnings, msg)
		e.logger.Warn(msg)
	}

	boms := bomCosts(bomLines, e.strategy)
	resolver := &rateResolver{rates: rates, fallback: avgRate, warned: map[string]bool{}, warn: warn}
	routers := routerCosts(ops, machines, resolver, e.strategy, warn)

	missing := map[string]bool{}
	results := make([]core.ForecastResult, 0, len(lines))
	for _, line := range lines {
		if id := line.Product.BOMID; id != "" {
			key := e.strategy.CostKey(id, line.Product.BOMVersion)
			if _, ok := boms[key]; !ok && !missing[key] {
				missing[key] = true
				warn(fmt.Sprintf("unit %s references bom %s with no lines", line.UnitID, key))
			}
		}
		results = append(results, costLine(line, boms, routers, e.strategy, forecastDate))
	}

	if err := e.store.ReplaceForecastResults(ctx, results); err != nil {
		return nil, abort("save forecast results", err)
	}

	e.logger.Info("forecast computed",
		"rows", len(results),
		"strategy", e.strategy,
		"duration", time.Since(start),
	)

	return &core.ForecastSnapshot{
		SalesForecast: lines,
		Results:       results,
		Columns:       core.ForecastColumns(),
		ForecastDate:  forecastDate,
		BOMCosts:      boms,
		LaborRates:    rates,
		AvgLaborRate:  avgRate,
		BOMStrategy:   e.strategy,
		Warnings:      warnings,
	}, nil
}

// SavedResults returns the persisted snapshot. The summary covers every row
// in the period; Limit bounds only the returned rows.
func (e *Engine) SavedResults(ctx context.Context, filter core.ResultFilter) (*core.SavedForecast, error) {
	rows, err := e.store.ListForecastResults(ctx, filter)
	if err != nil {
		return nil, err
	}
	summary, err := e.store.SummarizeForecastResults(ctx, filter.Period)
	if err != nil {
		return nil, err
	}
	return &core.SavedForecast{
		Rows:    rows,
		Columns: core.ForecastColumns(),
		Summary: summary,
	}, nil
}

// Utilization reports machine minutes required by the sales forecast against
// each machine's monthly capacity. An empty period covers every period.
func (e *Engine) Utilization(ctx context.Context, period string) ([]core.MachineLoad, error) {
	lines, err := e.store.ListSalesLines(ctx)
	if err != nil {
		return nil, err
	}
	ops, err := e.store.ListRouterOperations(ctx)
	if err != nil {
		return nil, err
	}
	machines, err := e.store.ListMachines(ctx)
	if err != nil {
		return nil, err
	}

	loads := machineLoads(lines, ops, machines, e.strategy, period)
	for _, l := range loads {
		if l.CapacityExceeded {
			e.logger.Warn("machine capacity exceeded",
				"period", l.Period, "machine_id", l.MachineID,
				"required", l.RequiredMinutes.String(), "available", l.AvailableMinutes)
		}
	}
	return loads, nil
}

// SortedKeys returns the keys of a cost map in ascending order.
func SortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func abort(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrComputationAborted, step, err)
}
