package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/facilityops/facility-service/internal/persistence"
)

// MigrateCmd applies the SQL migrations.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer env.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = env.cfg.Postgres.MigrationsDir
			}
			n, err := persistence.RunMigrations(cmd.Context(), env.pg.Pool, dir, env.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d migration(s) from %s\n", color.New(color.FgGreen).Sprint("applied"), n, dir)
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
	return cmd
}
