package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/repository"
	"github.com/facilityops/facility-service/internal/sla"
	"github.com/facilityops/facility-service/internal/worker"
)

var priorities = []domain.TicketPriority{
	domain.TicketPriorityCritical,
	domain.TicketPriorityHigh,
	domain.TicketPriorityMedium,
	domain.TicketPriorityLow,
}

// SLACmd groups SLA inspection commands.
func SLACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Inspect SLA breaches",
	}
	cmd.AddCommand(slaScanCmd())
	return cmd
}

func slaScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List tickets currently past their SLA threshold, most overdue first",
		Long: `Scan reads every unfinished ticket and reports those past their threshold.
It does not publish breach events; the API server's monitor does that.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer env.Close()

			policy, err := sla.LoadPolicy(env.cfg.SLA.PolicyFile)
			if err != nil {
				return err
			}
			pageSize, _ := cmd.Flags().GetInt("page-size")
			tickets := repository.NewTicketRepository(env.pg.Pool)
			breaches, err := worker.FindBreaches(cmd.Context(), tickets, policy, time.Now(), pageSize)
			if err != nil {
				return err
			}
			return writeBreaches(cmd.OutOrStdout(), breaches)
		},
	}
	cmd.Flags().Int("page-size", 200, "Tickets read per page")
	return cmd
}

func writeBreaches(out io.Writer, breaches []worker.Breach) error {
	if len(breaches) == 0 {
		fmt.Fprintln(out, color.New(color.FgGreen).Sprint("no breaches"))
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tPROPERTY\tPRIORITY\tSTATUS\tASSIGNEE\tOVERDUE")
	for _, b := range breaches {
		assignee := "-"
		if b.Ticket.AssigneeID != nil {
			assignee = *b.Ticket.AssigneeID
		}
		overdue := (b.ServiceTime - b.Threshold).Truncate(time.Minute)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Ticket.DisplayCode,
			b.Ticket.PropertyID,
			priorityLabel(b.Ticket.Priority),
			b.Ticket.Status,
			assignee,
			color.New(color.FgRed).Sprint(overdue),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d breach(es)\n", len(breaches))
	return nil
}

func priorityLabel(p domain.TicketPriority) string {
	switch p {
	case domain.TicketPriorityCritical:
		return color.New(color.FgRed, color.Bold).Sprint(p)
	case domain.TicketPriorityHigh:
		return color.New(color.FgYellow).Sprint(p)
	default:
		return string(p)
	}
}
