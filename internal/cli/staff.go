package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/facilityops/facility-service/internal/config"
	"github.com/facilityops/facility-service/internal/repository"
)

// StaffCmd manages the staff directory.
func StaffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage the staff directory",
	}
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Upsert staff members from a YAML directory file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := config.LoadStaffFile(args[0], time.Now().UTC())
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			out := cmd.OutOrStdout()
			if dryRun {
				for _, m := range members {
					fmt.Fprintf(out, "would upsert %s (%s) at %v\n", m.ID, m.Role, m.PropertyIDs)
				}
				return nil
			}

			env, err := openEnvironment(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer env.Close()
			repo := repository.NewStaffRepository(env.pg.Pool)
			for i := range members {
				if err := repo.Upsert(cmd.Context(), &members[i]); err != nil {
					return fmt.Errorf("upsert %s: %w", members[i].ID, err)
				}
			}
			fmt.Fprintf(out, "%s %d staff member(s)\n", color.New(color.FgGreen).Sprint("imported"), len(members))
			return nil
		},
	}
	importCmd.Flags().Bool("dry-run", false, "Validate the file and print what would change")
	cmd.AddCommand(importCmd)
	return cmd
}
