package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/bizforecast/internal/cli/output"
	"github.com/leapstack-labs/bizforecast/internal/reset"
	"github.com/leapstack-labs/bizforecast/internal/testutil"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   int
	}{
		{"no checks", nil, 100},
		{"all passing", []HealthCheck{{Status: statusPass}, {Status: statusPass}}, 100},
		{"warnings", []HealthCheck{{Status: statusWarn, IssueCount: 2}}, 90},
		{"errors count double", []HealthCheck{{Status: statusError, IssueCount: 2}}, 80},
		{"clamped", []HealthCheck{{Status: statusError, IssueCount: 50}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks))
		})
	}
}

func findCheck(t *testing.T, out *DoctorOutput, id string) HealthCheck {
	t.Helper()
	for _, c := range out.HealthChecks {
		if c.RuleID == id {
			return c
		}
	}
	t.Fatalf("check %s not found", id)
	return HealthCheck{}
}

func TestBuildDoctorOutput(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)
	dataDir := testutil.CopyDataDir(t)
	_, err := reset.New(s, reset.Config{DataDir: dataDir}).ResetToInitialState(ctx)
	require.NoError(t, err)

	out, err := buildDoctorOutput(ctx, s, dataDir)
	require.NoError(t, err)

	assert.Equal(t, int64(4), out.MigrationLevel)
	assert.Equal(t, int64(3), out.RowCounts[core.TableSales])
	assert.Equal(t, statusPass, findCheck(t, out, "DF01").Status)
	assert.Equal(t, statusPass, findCheck(t, out, "DF02").Status, "backfilled bom versions match")

	zeroQty := findCheck(t, out, "DF05")
	assert.Equal(t, statusWarn, zeroQty.Status)
	assert.Equal(t, []string{"SALE-003"}, zeroQty.Details)
	assert.Equal(t, 95, out.Score)
	require.Len(t, out.Recommendations, 1)

	t.Run("gaps", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dataDir, "expenses.csv")))
		_, err := s.Exec(ctx, `DELETE FROM labor_rates WHERE rate_id = 'LABOR-STD'`)
		require.NoError(t, err)
		_, err = s.Exec(ctx, `UPDATE machines SET available_minutes_per_month = 0 WHERE machine_id = 'MCH-002'`)
		require.NoError(t, err)

		out, err := buildDoctorOutput(ctx, s, dataDir)
		require.NoError(t, err)

		files := findCheck(t, out, "DF01")
		assert.Equal(t, statusError, files.Status)
		assert.Equal(t, []string{"expenses.csv"}, files.Details)
		assert.Equal(t, []string{"LABOR-STD"}, findCheck(t, out, "DF04").Details)
		assert.Equal(t, statusError, findCheck(t, out, "DF06").Status)
		assert.Equal(t, 100-10-5-5-10, out.Score)
		assert.Equal(t, "Restore the missing CSV files before running reset", out.Recommendations[0])

		buf := new(bytes.Buffer)
		renderDoctor(output.NewRenderer(buf, buf, output.ModeTable), out)
		assert.Contains(t, buf.String(), "Health Score: 70/100")
		assert.Contains(t, buf.String(), "Capacity")
	})
}
