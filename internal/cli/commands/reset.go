package commands

import (
	"context"
	"sort"

	"github.com/leapstack-labs/bizforecast/internal/cli/output"
	"github.com/leapstack-labs/bizforecast/internal/reset"
	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand() *cobra.Command {
	var clean bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reload the working data from the canonical flat files",
		Long: `Empty the entity tables and reload them from the CSV files in the data
directory. The execution log and saved forecast are kept, so logged edits
can be replayed afterwards.

With --clean the schema is dropped and rebuilt first, which also discards
the execution log and the saved forecast.`,
		Example: `  bizforecast reset
  bizforecast reset --clean --data-dir ./data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Cfg.ValidateDataDir(); err != nil {
				return err
			}

			run := cmdCtx.Engine.ResetToInitialState
			if clean {
				run = cmdCtx.Engine.ResetClean
			}
			return runReset(cmd.Context(), cmdCtx.Renderer, run)
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "Rebuild the schema and drop the execution log")

	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every row, including the execution log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runReset(cmd.Context(), cmdCtx.Renderer, cmdCtx.Engine.ClearData)
		},
	}
}

func runReset(ctx context.Context, r *output.Renderer, run func(context.Context) (*reset.Result, error)) error {
	res, err := run(ctx)
	if err != nil {
		return err
	}
	if r.IsJSON() {
		return r.JSON(res)
	}

	r.Println(res.Message)
	if len(res.Loaded) > 0 {
		tables := make([]string, 0, len(res.Loaded))
		for t := range res.Loaded {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		rows := make([][]any, 0, len(tables))
		for _, t := range tables {
			rows = append(rows, []any{t, res.Loaded[t]})
		}
		r.Table([]string{"table", "rows"}, rows)
	}
	return nil
}
