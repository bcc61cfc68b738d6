package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/facilityops/facility-service/internal/sla"
)

// PolicyCmd groups SLA policy commands.
func PolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the SLA policy",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective thresholds and category skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				env, err := openEnvironment(cmd.Context(), false)
				if err != nil {
					return err
				}
				path = env.cfg.SLA.PolicyFile
			}
			policy, err := sla.LoadPolicy(path)
			if err != nil {
				return err
			}
			return writePolicy(cmd.OutOrStdout(), policy)
		},
	}
	show.Flags().String("file", "", "Policy file (defaults to SLA_POLICY_FILE)")
	cmd.AddCommand(show)
	return cmd
}

func writePolicy(out io.Writer, policy sla.Policy) error {
	heading := color.New(color.Bold)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	heading.Fprintln(w, "DEFAULT THRESHOLDS")
	for _, p := range priorities {
		fmt.Fprintf(w, "  %s\t%s\n", p, policy.Threshold(p, ""))
	}

	names := policy.CategoryNames()
	if len(names) > 0 {
		fmt.Fprintln(w)
		heading.Fprintln(w, "CATEGORIES")
	}
	for _, name := range names {
		fmt.Fprintf(w, "  %s\tskills: %s\n", name, strings.Join(policy.RequiredSkills(name), ", "))
		for _, p := range priorities {
			if d, ok := policy.Categories[name].Thresholds[p]; ok {
				fmt.Fprintf(w, "    %s\t%s\n", p, d)
			}
		}
	}
	return w.Flush()
}
