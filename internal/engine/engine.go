// Package engine wires the store and the forecasting, logging, replay and
// reset engines behind one handle shared by the CLI and the HTTP API.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/bizforecast/internal/execlog"
	"github.com/leapstack-labs/bizforecast/internal/forecast"
	"github.com/leapstack-labs/bizforecast/internal/replay"
	"github.com/leapstack-labs/bizforecast/internal/reset"
	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
)

// Engine owns an open store and the engines built on it.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	// mu guards the component set. Delegated calls hold the read lock for
	// their whole duration, so SwitchDatabase waits for them to drain before
	// closing the old store.
	mu    sync.RWMutex
	comps *components
}

type components struct {
	store    *store.Store
	forecast *forecast.Engine
	execlog  *execlog.Logger
	replay   *replay.Engine
	reset    *reset.Engine
}

// Config holds engine configuration.
type Config struct {
	// DatabasePath is the SQLite file, or ":memory:"
	DatabasePath string
	// DataDir holds the canonical flat files used by resets
	DataDir string
	// Strategy scopes BOM and routing cost aggregation
	Strategy core.BOMStrategy
	// FallbackRate is the last-resort hourly labor rate
	FallbackRate decimal.Decimal
	// Retry tunes retries on a locked database
	Retry store.RetryPolicy
	// Clock stamps forecast and execution dates (optional, uses time.Now)
	Clock func() time.Time
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New opens the database, applies migrations and builds the engines.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	// Initialize logger (use discard handler if nil)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.Logger = logger

	logger.Debug("initializing engine", "database", cfg.DatabasePath, "data_dir", cfg.DataDir)

	comps, err := open(ctx, cfg, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, logger: logger, comps: comps}, nil
}

func open(ctx context.Context, cfg Config, path string) (*components, error) {
	s, err := store.Open(ctx, path, store.Options{Logger: cfg.Logger, Retry: cfg.Retry})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	return &components{
		store: s,
		forecast: forecast.New(s, forecast.Config{
			Strategy:     cfg.Strategy,
			FallbackRate: cfg.FallbackRate,
			Clock:        cfg.Clock,
			Logger:       cfg.Logger.With("component", "forecast"),
		}),
		execlog: execlog.New(s, execlog.Config{
			Clock:  cfg.Clock,
			Logger: cfg.Logger.With("component", "execlog"),
		}),
		replay: replay.New(s, cfg.Logger.With("component", "replay")),
		reset: reset.New(s, reset.Config{
			DataDir: cfg.DataDir,
			Logger:  cfg.Logger.With("component", "reset"),
		}),
	}, nil
}

// acquire returns the active components and holds them until release is
// called. Callers must not acquire again before releasing.
func (e *Engine) acquire() (*components, func()) {
	e.mu.RLock()
	return e.comps, e.mu.RUnlock
}

// SwitchDatabase opens path, migrates it and makes it the active store.
// Calls in flight finish on the previous store, which is closed once they
// have drained. On failure the current store stays active.
func (e *Engine) SwitchDatabase(ctx context.Context, path string) error {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	comps, err := open(ctx, cfg, path)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.comps
	e.comps = comps
	e.cfg.DatabasePath = path

	e.logger.Info("switched database", "database", path)
	return old.store.Close()
}

// DatabasePath returns the path of the active store.
func (e *Engine) DatabasePath() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.DatabasePath
}

// DataDir returns the directory resets load from.
func (e *Engine) DataDir() string {
	return e.cfg.DataDir
}

// Strategy returns the configured BOM strategy.
func (e *Engine) Strategy() core.BOMStrategy {
	c, release := e.acquire()
	defer release()
	return c.forecast.Strategy()
}

// Store returns the active store. The result is not protected against a
// later SwitchDatabase; long-lived callers should go through the delegates.
func (e *Engine) Store() *store.Store {
	c, release := e.acquire()
	defer release()
	return c.store
}

// Ping checks that the active store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	c, release := e.acquire()
	defer release()
	return c.store.Ping(ctx)
}

// Close closes the active store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comps.store.Close()
}

// ComputeForecast runs the cost engine and replaces the saved snapshot.
func (e *Engine) ComputeForecast(ctx context.Context) (*core.ForecastSnapshot, error) {
	c, release := e.acquire()
	defer release()
	return c.forecast.Compute(ctx)
}

// SavedForecast returns the last persisted snapshot.
func (e *Engine) SavedForecast(ctx context.Context, filter core.ResultFilter) (*core.SavedForecast, error) {
	c, release := e.acquire()
	defer release()
	return c.forecast.SavedResults(ctx, filter)
}

// Utilization reports machine load per period.
func (e *Engine) Utilization(ctx context.Context, period string) ([]core.MachineLoad, error) {
	c, release := e.acquire()
	defer release()
	return c.forecast.Utilization(ctx, period)
}

// ExecuteSQL runs one statement through the execution log.
func (e *Engine) ExecuteSQL(ctx context.Context, req execlog.Request) (*execlog.Result, error) {
	c, release := e.acquire()
	defer release()
	return c.execlog.Execute(ctx, req)
}

// ExecutionLogs lists logged statements, newest first.
func (e *Engine) ExecutionLogs(ctx context.Context, filter core.LogFilter) (*execlog.Logs, error) {
	c, release := e.acquire()
	defer release()
	return c.execlog.Logs(ctx, filter)
}

// Replay re-applies logged writes selected by filter.
func (e *Engine) Replay(ctx context.Context, filter core.ReplayFilter) (*core.ReplayResult, error) {
	c, release := e.acquire()
	defer release()
	return c.replay.Replay(ctx, filter)
}

// ResetToInitialState reloads the entity tables from the flat files.
func (e *Engine) ResetToInitialState(ctx context.Context) (*reset.Result, error) {
	c, release := e.acquire()
	defer release()
	return c.reset.ResetToInitialState(ctx)
}

// ResetClean rebuilds the schema and reloads the flat files.
func (e *Engine) ResetClean(ctx context.Context) (*reset.Result, error) {
	c, release := e.acquire()
	defer release()
	return c.reset.ResetClean(ctx)
}

// ClearData empties every table.
func (e *Engine) ClearData(ctx context.Context) (*reset.Result, error) {
	c, release := e.acquire()
	defer release()
	return c.reset.ClearData(ctx)
}
