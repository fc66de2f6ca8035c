package commands

import (
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Apply pending schema migrations to the working database. With --seed an
empty database is then loaded from the flat files in the data directory.`,
		Example: `  bizforecast migrate --seed`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			version, err := cmdCtx.Engine.Store().MigrationVersion(ctx)
			if err != nil {
				return err
			}

			out := map[string]any{
				"database":          cmdCtx.Engine.DatabasePath(),
				"migration_version": version,
				"seeded":            false,
			}
			if seed {
				if err := cmdCtx.Cfg.ValidateDataDir(); err != nil {
					return err
				}
				res, seeded, err := cmdCtx.Engine.SeedIfEmpty(ctx)
				if err != nil {
					return err
				}
				out["seeded"] = seeded
				if seeded {
					out["rows_loaded"] = res.RowsLoaded
				}
			}

			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(out)
			}
			r.Printf("%s at migration version %d\n", cmdCtx.Engine.DatabasePath(), version)
			if seeded, _ := out["seeded"].(bool); seeded {
				r.Printf("seeded %d rows from %s\n", out["rows_loaded"], cmdCtx.Engine.DataDir())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Load the flat files when the database is empty")

	return cmd
}
