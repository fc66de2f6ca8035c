package commands

import (
	"fmt"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/spf13/cobra"
)

// LogsOptions holds options for the logs command.
type LogsOptions struct {
	Limit     int
	UserID    string
	SessionID string
	Status    string
}

// NewLogsCommand creates the logs command.
func NewLogsCommand() *cobra.Command {
	opts := &LogsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List execution log entries, newest first",
		Example: `  bizforecast logs --limit 20
  bizforecast logs --status error --user alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			logs, err := cmdCtx.Engine.ExecutionLogs(cmd.Context(), core.LogFilter{
				Limit:     opts.Limit,
				UserID:    opts.UserID,
				SessionID: opts.SessionID,
				Status:    core.ExecutionStatus(opts.Status),
			})
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(logs)
			}
			rows := make([][]any, 0, len(logs.Entries))
			for _, e := range logs.Entries {
				rows = append(rows, []any{
					e.LogID, e.ExecutionDate, e.Status, e.UserID,
					truncate(e.SQLStatement, 60), e.RowsAffected, e.ExecutionTimeMS, e.ErrorMessage,
				})
			}
			r.Table([]string{"log_id", "executed", "status", "user", "sql", "rows", "ms", "error"}, rows)

			s := logs.Summary
			r.Printf("%d entries: %d success, %d error, %d rows affected, avg %.1fms\n",
				s.TotalEntries, s.SuccessCount, s.ErrorCount, s.TotalRowsAffected, s.AvgExecutionTimeMS)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Maximum number of entries (0 for all)")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "Only entries from this user")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Only entries from this session")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Only entries with this status (success|error)")

	_ = cmd.RegisterFlagCompletionFunc("status", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(core.StatusSuccess), string(core.StatusError)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n-3]))
}
