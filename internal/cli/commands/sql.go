package commands

import (
	"strings"

	"github.com/leapstack-labs/bizforecast/internal/cli/output"
	"github.com/leapstack-labs/bizforecast/internal/execlog"
	"github.com/spf13/cobra"
)

// SQLOptions holds options for the sql command.
type SQLOptions struct {
	Description string
	UserID      string
	SessionID   string
}

// NewSQLCommand creates the sql command.
func NewSQLCommand() *cobra.Command {
	opts := &SQLOptions{}

	cmd := &cobra.Command{
		Use:   "sql <statement>",
		Short: "Execute a SQL statement and record it in the execution log",
		Long: `Execute one SQL statement against the working database. Every call,
successful or not, is appended to the execution log so it can be audited
and replayed later.`,
		Example: `  bizforecast sql "SELECT * FROM sales"
  bizforecast sql "UPDATE sales SET quantity = 12 WHERE sale_id = 'SALE-001'" -d "bump order"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req := execlog.Request{
				SQL:         strings.Join(args, " "),
				Description: opts.Description,
				UserID:      opts.UserID,
				SessionID:   opts.SessionID,
			}
			if req.UserID == "" {
				req.UserID = currentUser()
			}
			if req.SessionID == "" {
				req.SessionID = sessionID
			}

			res, err := cmdCtx.Engine.ExecuteSQL(cmd.Context(), req)
			if err != nil {
				return err
			}
			return renderSQLResult(cmdCtx.Renderer, res)
		},
	}

	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "Note stored with the log entry")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "User recorded in the log (default: OS user)")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Session recorded in the log (default: per-process id)")

	return cmd
}

func renderSQLResult(r *output.Renderer, res *execlog.Result) error {
	if r.IsJSON() {
		return r.JSON(res)
	}
	if !res.IsQuery {
		r.Printf("%d rows affected (log_id=%d, %dms)\n", res.RowsAffected, res.LogID, res.ExecutionTimeMS)
		return nil
	}

	rows := make([][]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]any, len(res.Columns))
		for i, col := range res.Columns {
			cells[i] = output.FormatValue(row[col])
		}
		rows = append(rows, cells)
	}
	r.Table(res.Columns, rows)
	return nil
}
