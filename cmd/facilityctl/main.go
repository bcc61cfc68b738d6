package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/facilityops/facility-service/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "facilityctl",
		Short: "Operations tooling for the facility ticket service",
		Long: `facilityctl applies migrations, inspects SLA state and manages the staff
directory of a facility-service deployment. It reads the same environment
variables as the API server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.SLACmd())
	rootCmd.AddCommand(cli.PolicyCmd())
	rootCmd.AddCommand(cli.TokenCmd())
	rootCmd.AddCommand(cli.StaffCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
