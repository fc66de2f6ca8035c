package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/bizforecast/internal/execlog"
	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/leapstack-labs/bizforecast/internal/testutil"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decimalTwo = decimal.NewFromInt(2)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	tick := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	eng, err := New(context.Background(), Config{
		DatabasePath: store.MemoryPath,
		DataDir:      testutil.DataDir(t),
		Logger:       testutil.NewTestLogger(t),
		Clock: func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestNew(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	assert.Equal(t, store.MemoryPath, eng.DatabasePath())
	assert.Equal(t, core.BOMStrategyVersioned, eng.Strategy())
	require.NoError(t, eng.Ping(ctx))

	version, err := eng.Store().MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
}

func TestNew_UnwritablePath(t *testing.T) {
	_, err := New(context.Background(), Config{DatabasePath: "/proc/bizforecast/forecast.db"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open store")
}

func TestSeedIfEmpty(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	res, seeded, err := eng.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, int64(35), res.RowsLoaded)

	_, err = eng.ExecuteSQL(ctx, execlog.Request{SQL: "DELETE FROM sales WHERE sale_id = 'SALE-003'"})
	require.NoError(t, err)

	_, seeded, err = eng.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, seeded, "populated database is left alone")

	n, err := eng.Store().CountRows(ctx, core.TableSales)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

// TestDisasterRecovery walks the full cycle: edit through the log, wipe
// with a clean reset, then replay the edits back.
func TestDisasterRecovery(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, _, err := eng.SeedIfEmpty(ctx)
	require.NoError(t, err)

	before, err := eng.ComputeForecast(ctx)
	require.NoError(t, err)
	require.Len(t, before.Results, 3)

	_, err = eng.ExecuteSQL(ctx, execlog.Request{
		SQL:    "UPDATE sales SET quantity = 20, total_revenue = 1000 WHERE sale_id = 'SALE-001'",
		UserID: "planner",
	})
	require.NoError(t, err)
	_, err = eng.ExecuteSQL(ctx, execlog.Request{SQL: "SELECT * FROM sales", UserID: "planner"})
	require.NoError(t, err)

	logs, err := eng.ExecutionLogs(ctx, core.LogFilter{UserID: "planner"})
	require.NoError(t, err)
	require.Len(t, logs.Entries, 2)
	lastLogID := logs.Entries[0].LogID

	edited, err := eng.ComputeForecast(ctx)
	require.NoError(t, err)
	assert.True(t, edited.Results[0].TotalCost.Equal(before.Results[0].TotalCost.Mul(decimalTwo)))

	// A plain reset keeps the log, so the edits can be replayed.
	_, err = eng.ResetToInitialState(ctx)
	require.NoError(t, err)

	res, err := eng.Replay(ctx, core.ReplayFilter{MaxLogID: lastLogID, UserID: "planner"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReplayedCount)
	assert.Equal(t, 1, res.SkippedCount)
	assert.Zero(t, res.FailedCount)

	replayed, err := eng.ComputeForecast(ctx)
	require.NoError(t, err)
	assert.True(t, replayed.Results[0].TotalCost.Equal(edited.Results[0].TotalCost))

	saved, err := eng.SavedForecast(ctx, core.ResultFilter{Period: "2024-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Summary.TotalRecords)

	loads, err := eng.Utilization(ctx, "2024-01")
	require.NoError(t, err)
	assert.NotEmpty(t, loads)

	// A clean reset drops the history too.
	clean, err := eng.ResetClean(ctx)
	require.NoError(t, err)
	assert.Equal(t, 17, clean.TablesCleared)
	after, err := eng.ExecutionLogs(ctx, core.LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, after.Entries)

	cleared, err := eng.ClearData(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(35), cleared.RowsCleared)
}

func TestSwitchDatabase(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, _, err := eng.SeedIfEmpty(ctx)
	require.NoError(t, err)
	old := eng.Store()

	path := filepath.Join(t.TempDir(), "other.db")
	require.NoError(t, eng.SwitchDatabase(ctx, path))
	assert.Equal(t, path, eng.DatabasePath())
	assert.NotSame(t, old, eng.Store())

	n, err := eng.Store().CountRows(ctx, core.TableSales)
	require.NoError(t, err)
	assert.Zero(t, n, "new database starts empty")

	t.Run("failed switch keeps current store", func(t *testing.T) {
		err := eng.SwitchDatabase(ctx, "/proc/bizforecast/nope.db")
		require.Error(t, err)
		assert.Equal(t, path, eng.DatabasePath())
		assert.NoError(t, eng.Ping(ctx))
	})
}

func TestSwitchDatabase_WaitsForInFlightCalls(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "other.db")

	c, release := eng.acquire()
	done := make(chan error, 1)
	go func() { done <- eng.SwitchDatabase(ctx, path) }()

	select {
	case err := <-done:
		t.Fatalf("switch finished while a call was in flight: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	require.NoError(t, c.store.Ping(ctx), "old store stays open for the in-flight call")

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("switch did not finish after the call drained")
	}
	assert.Error(t, c.store.Ping(ctx))
	assert.Equal(t, path, eng.DatabasePath())
}
