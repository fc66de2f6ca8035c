package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/bizforecast/internal/api"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the forecasting API over HTTP",
		Long: `Start a JSON HTTP API exposing forecast computation, saved results,
machine utilization, the SQL execution log, replay and resets.

An empty database is seeded from the data directory on startup. With
--watch, editing a CSV in the data directory reloads the working data.`,
		Example: `  bizforecast serve --port 9000 --watch`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := cmdCtx.Cfg
			if err := cfg.ValidateDataDir(); err != nil {
				return err
			}
			if _, seeded, err := cmdCtx.Engine.SeedIfEmpty(cmd.Context()); err != nil {
				return fmt.Errorf("failed to seed database: %w", err)
			} else if seeded {
				cmdCtx.Logger.Info("seeded empty database", "data_dir", cfg.DataDir)
			}

			server := api.NewServer(api.Config{
				Backend: cmdCtx.Engine,
				Port:    cfg.Server.Port,
				Watch:   cfg.Server.Watch,
				DataDir: cfg.DataDir,
				Logger:  cmdCtx.Logger,
			})

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Serving on http://localhost:%d\n", cfg.Server.Port)
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to stop")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			return server.Serve(ctx)
		},
	}

	// Defaults come from config; only explicitly set flags override it.
	cmd.Flags().Int("port", 0, "Port to serve on (default: 8080)")
	cmd.Flags().Bool("watch", false, "Reload the data when a CSV in the data directory changes")

	return cmd
}
