package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/bizforecast/internal/execlog"
	"github.com/leapstack-labs/bizforecast/internal/reset"
	"github.com/leapstack-labs/bizforecast/internal/testutil"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if errOut.Len() > 0 {
		t.Log(errOut.String())
	}
	return out.String(), err
}

func decode(t *testing.T, raw string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(raw), v), raw)
}

func TestCLI_Workflow(t *testing.T) {
	dir := t.TempDir()
	common := []string{
		"--database", filepath.Join(dir, "db", "forecast.db"),
		"--data-dir", testutil.DataDir(t),
		"-o", "json",
	}
	cli := func(args ...string) (string, error) {
		return runCLI(t, append(args, common...)...)
	}

	out, err := cli("migrate", "--seed")
	require.NoError(t, err)
	var migrated map[string]any
	decode(t, out, &migrated)
	assert.Equal(t, true, migrated["seeded"])
	assert.EqualValues(t, 35, migrated["rows_loaded"])
	assert.EqualValues(t, 4, migrated["migration_version"])

	out, err = cli("doctor")
	require.NoError(t, err)
	var health map[string]any
	decode(t, out, &health)
	assert.EqualValues(t, 95, health["score"])

	out, err = cli("forecast")
	require.NoError(t, err)
	var snap core.ForecastSnapshot
	decode(t, out, &snap)
	require.Len(t, snap.Results, 3)
	assert.True(t, snap.Results[0].TotalCost.Equal(decimal.RequireFromString("837.50")))
	assert.Equal(t, core.BOMStrategyVersioned, snap.BOMStrategy)

	out, err = cli("results", "--period", "2024-01")
	require.NoError(t, err)
	var saved core.SavedForecast
	decode(t, out, &saved)
	assert.Equal(t, int64(2), saved.Summary.TotalRecords)

	out, err = cli("utilization", "--period", "2024-01")
	require.NoError(t, err)
	var loads []core.MachineLoad
	decode(t, out, &loads)
	assert.Len(t, loads, 2)

	out, err = cli("sql", "UPDATE sales SET quantity = 20 WHERE sale_id = 'SALE-001'", "--user", "tester")
	require.NoError(t, err)
	var res execlog.Result
	decode(t, out, &res)
	assert.Equal(t, int64(1), res.RowsAffected)

	_, err = cli("sql", "DELETE FROM nowhere", "--user", "tester")
	require.Error(t, err)
	assert.True(t, core.IsStatementError(err))

	out, err = cli("logs", "--user", "tester")
	require.NoError(t, err)
	var logs execlog.Logs
	decode(t, out, &logs)
	require.Len(t, logs.Entries, 2)
	assert.Equal(t, core.StatusError, logs.Entries[0].Status)
	assert.NotEmpty(t, logs.Entries[0].SessionID)

	out, err = cli("reset")
	require.NoError(t, err)
	var reloaded reset.Result
	decode(t, out, &reloaded)
	assert.Equal(t, int64(35), reloaded.RowsLoaded)

	out, err = cli("replay", "--user", "tester")
	require.NoError(t, err)
	var replayed core.ReplayResult
	decode(t, out, &replayed)
	assert.Equal(t, 1, replayed.ReplayedCount)
	assert.Zero(t, replayed.FailedCount)

	xlsx := filepath.Join(dir, "forecast.xlsx")
	_, err = cli("export", "--file", xlsx)
	require.NoError(t, err)
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	out, err = runCLI(t, "results", "-o", "table", "--database", filepath.Join(dir, "db", "forecast.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "SALE-001")
	assert.Contains(t, out, "(3 rows)")

	out, err = cli("clear")
	require.NoError(t, err)
	var cleared reset.Result
	decode(t, out, &cleared)
	assert.Equal(t, 17, cleared.TablesCleared)
}

func TestCLI_GlobalStrategyFlag(t *testing.T) {
	db := filepath.Join(t.TempDir(), "forecast.db")
	data := testutil.DataDir(t)

	_, err := runCLI(t, "migrate", "--seed", "--database", db, "--data-dir", data)
	require.NoError(t, err)

	out, err := runCLI(t, "forecast", "--bom-strategy", "global", "--database", db, "--data-dir", data, "-o", "json")
	require.NoError(t, err)
	var snap core.ForecastSnapshot
	decode(t, out, &snap)
	assert.Equal(t, core.BOMStrategyGlobal, snap.BOMStrategy)
	assert.True(t, snap.Results[0].MaterialCost.Equal(decimal.NewFromInt(550)))
}

func TestCLI_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "forecast.db")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown strategy", []string{"forecast", "--bom-strategy", "fifo"}, "bom_strategy"},
		{"unknown output", []string{"logs", "-o", "xml"}, "output"},
		{"bad target date", []string{"replay", "--target-date", "soon"}, "target date"},
		{"negative max log id", []string{"replay", "--max-log-id=-1"}, "max_log_id must not be negative"},
		{"bad log status", []string{"logs", "--status", "pending"}, "invalid filter"},
		{"missing data dir", []string{"reset", "--data-dir", filepath.Join(t.TempDir(), "nope")}, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, append(tt.args, "--database", db)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bizforecast v"+Version)
}

func TestCLI_Completion(t *testing.T) {
	out, err := runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "bizforecast")
}
