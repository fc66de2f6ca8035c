// Package reset restores the working database to the canonical flat files.
//
// ResetToInitialState clears and reloads the entity tables only. ResetClean
// drops the whole schema, re-runs migrations and reloads. ClearData empties
// every table, system tables included, and loads nothing. All three clear in
// dependency order, children before parents.
package reset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/leapstack-labs/bizforecast/pkg/core"
)

// Store is the subset of the relational store the reset engine needs.
type Store interface {
	ClearTables(ctx context.Context, tables []string, mode store.ClearMode) (store.ClearStats, error)
	DropSchema(ctx context.Context) (store.ClearStats, error)
	Migrate(ctx context.Context) error
	LoadCSV(ctx context.Context, table, path string, backfills []store.Backfill) (int64, error)
}

// Config holds reset engine configuration.
type Config struct {
	// DataDir holds the canonical CSV files.
	DataDir string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine performs resets against an injected store.
type Engine struct {
	store   Store
	dataDir string
	logger  *slog.Logger
	mu      sync.Mutex
}

// Result reports what a reset removed and reloaded.
type Result struct {
	Message       string           `json:"message"`
	TablesCleared int              `json:"tables_cleared"`
	RowsCleared   int64            `json:"rows_cleared"`
	TablesLoaded  int              `json:"tables_loaded"`
	RowsLoaded    int64            `json:"rows_loaded"`
	Loaded        map[string]int64 `json:"loaded,omitempty"`
}

// New creates a reset engine.
func New(s Store, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: s, dataDir: cfg.DataDir, logger: logger}
}

// DataDir returns the directory the engine reloads from.
func (e *Engine) DataDir() string {
	return e.dataDir
}

// ResetToInitialState clears every entity table and reloads it from its flat
// file. The execution log and forecast results are left alone. Running it
// twice yields the same state as running it once.
func (e *Engine) ResetToInitialState(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("resetting to initial state", "data_dir", e.dataDir)

	stats, err := e.store.ClearTables(ctx, core.EntityTables(), store.DeleteRows)
	if err != nil {
		return nil, fmt.Errorf("clear entity tables: %w", err)
	}

	res := &Result{TablesCleared: stats.TablesCleared, RowsCleared: stats.RowsCleared}
	if err := e.reload(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// ResetClean drops every table, including the execution log, forecast
// results and migration bookkeeping, rebuilds the schema and reloads.
func (e *Engine) ResetClean(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("resetting clean", "data_dir", e.dataDir)

	stats, err := e.store.DropSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("drop schema: %w", err)
	}
	if err := e.store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("recreate schema: %w", err)
	}

	res := &Result{TablesCleared: stats.TablesCleared, RowsCleared: stats.RowsCleared}
	if err := e.reload(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// ClearData deletes every row from every entity and system table, keeping
// the structure. Nothing is reloaded.
func (e *Engine) ClearData(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("clearing all data")

	tables := append(core.EntityTables(), core.SystemTables()...)
	stats, err := e.store.ClearTables(ctx, tables, store.DeleteRows)
	if err != nil {
		return nil, fmt.Errorf("clear data: %w", err)
	}
	return &Result{
		Message:       fmt.Sprintf("cleared %d rows from %d tables", stats.RowsCleared, stats.TablesCleared),
		TablesCleared: stats.TablesCleared,
		RowsCleared:   stats.RowsCleared,
	}, nil
}

func (e *Engine) reload(ctx context.Context, res *Result) error {
	res.Loaded = make(map[string]int64)
	for _, src := range Sources() {
		path := filepath.Join(e.dataDir, src.File)
		e.logger.Debug("loading flat file", "table", src.Table, "path", path)

		n, err := e.store.LoadCSV(ctx, src.Table, path, src.Backfills)
		if err != nil {
			e.logger.Error("reset incomplete", "table", src.Table, "path", path, "error", err)
			return &core.ResetIncompleteError{Table: src.Table, File: path, Err: err}
		}
		res.Loaded[src.Table] = n
		res.TablesLoaded++
		res.RowsLoaded += n
	}

	res.Message = fmt.Sprintf("reloaded %d rows into %d tables from %s", res.RowsLoaded, res.TablesLoaded, e.dataDir)
	e.logger.Info("reset complete", "tables", res.TablesLoaded, "rows", res.RowsLoaded)
	return nil
}
