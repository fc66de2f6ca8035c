package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/bizforecast/internal/export"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write the saved forecast to a spreadsheet",
		Example: `  bizforecast export --file q1.xlsx`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			saved, err := cmdCtx.Engine.SavedForecast(cmd.Context(), core.ResultFilter{})
			if err != nil {
				return err
			}

			f, err := os.Create(file) //nolint:gosec // path chosen by the user
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", file, err)
			}
			if err := export.WriteForecastXLSX(f, saved); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			cmdCtx.Logger.Debug("exported forecast", "file", file, "rows", len(saved.Rows))
			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(map[string]any{"file": file, "rows": len(saved.Rows)})
			}
			r.Printf("wrote %d rows to %s\n", len(saved.Rows), file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "forecast.xlsx", "Output spreadsheet path")

	return cmd
}
