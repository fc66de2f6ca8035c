package commands

import (
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/spf13/cobra"
)

// ReplayOptions holds options for the replay command.
type ReplayOptions struct {
	TargetDate string
	MaxLogID   int64
	UserID     string
	SessionID  string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand() *cobra.Command {
	opts := &ReplayOptions{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-apply logged write statements",
		Long: `Re-apply successful write statements from the execution log in the
order they originally ran. Read-only statements are skipped. A statement
that fails is rolled back on its own and reported; the rest still apply.
Replayed statements are not logged again.`,
		Example: `  # Rebuild after a reset, up to the end of a day
  bizforecast reset
  bizforecast replay --target-date 2024-03-01

  # Only one user's edits, up to a known log entry
  bizforecast replay --user alice --max-log-id 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := core.ParseTargetDate(opts.TargetDate)
			if err != nil {
				return err
			}
			filter := core.ReplayFilter{
				TargetDate: target,
				MaxLogID:   opts.MaxLogID,
				UserID:     opts.UserID,
				SessionID:  opts.SessionID,
			}
			if err := filter.Validate(); err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := cmdCtx.Engine.Replay(cmd.Context(), filter)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(res)
			}
			r.Printf("replayed %d, skipped %d read-only, failed %d\n",
				res.ReplayedCount, res.SkippedCount, res.FailedCount)
			if len(res.Errors) > 0 {
				rows := make([][]any, 0, len(res.Errors))
				for _, e := range res.Errors {
					rows = append(rows, []any{e.LogID, truncate(e.SQLStatement, 60), e.Error})
				}
				r.Table([]string{"log_id", "sql", "error"}, rows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TargetDate, "target-date", "", "Replay entries executed up to this date or timestamp (inclusive)")
	cmd.Flags().Int64Var(&opts.MaxLogID, "max-log-id", 0, "Replay entries up to this log id (inclusive)")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "Only replay this user's entries")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Only replay this session's entries")

	return cmd
}
