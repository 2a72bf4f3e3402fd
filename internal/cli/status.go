package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which provider tiers are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := r.svc.Status()
			if err != nil {
				return err
			}
			if r.flags.JSON {
				return writeJSON(cmd.OutOrStdout(), statuses)
			}
			out := cmd.OutOrStdout()
			for _, s := range statuses {
				fmt.Fprintf(out, "%s:\n", s.Service)
				for _, t := range s.Tiers {
					state := "available"
					if !t.Available {
						state = "unavailable: " + t.Reason
					}
					line := fmt.Sprintf("  %-9s %-14s %s", t.Tier, t.Provider, state)
					if t.Breaker != "" {
						line += " (breaker " + t.Breaker + ")"
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
}
