package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leapstack-labs/bizforecast/internal/cli/output"
	"github.com/leapstack-labs/bizforecast/internal/execlog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewForecastCommand(), "forecast", nil},
		{NewResultsCommand(), "results", []string{"period", "limit"}},
		{NewUtilizationCommand(), "utilization", []string{"period"}},
		{NewSQLCommand(), "sql <statement>", []string{"description", "user", "session"}},
		{NewLogsCommand(), "logs", []string{"limit", "user", "session", "status"}},
		{NewReplayCommand(), "replay", []string{"target-date", "max-log-id", "user", "session"}},
		{NewResetCommand(), "reset", []string{"clean"}},
		{NewClearCommand(), "clear", nil},
		{NewExportCommand(), "export", []string{"file"}},
		{NewServeCommand(), "serve", []string{"port", "watch"}},
		{NewMigrateCommand(), "migrate", []string{"seed"}},
		{NewDoctorCommand(), "doctor", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	assert.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(buf.String(), "bizforecast v1.2.3\n"))
}

func TestRenderSQLResult(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		buf := new(bytes.Buffer)
		r := output.NewRenderer(buf, buf, output.ModeTable)
		assert.NoError(t, renderSQLResult(r, &execlog.Result{LogID: 7, RowsAffected: 3, ExecutionTimeMS: 2}))
		assert.Equal(t, "3 rows affected (log_id=7, 2ms)\n", buf.String())
	})

	t.Run("query", func(t *testing.T) {
		buf := new(bytes.Buffer)
		r := output.NewRenderer(buf, buf, output.ModeTable)
		assert.NoError(t, renderSQLResult(r, &execlog.Result{
			IsQuery: true,
			Columns: []string{"sale_id", "note"},
			Rows:    []map[string]any{{"sale_id": "SALE-001", "note": nil}},
		}))
		assert.Contains(t, buf.String(), "SALE-001")
		assert.Contains(t, buf.String(), "NULL")
		assert.Contains(t, buf.String(), "(1 rows)")
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
