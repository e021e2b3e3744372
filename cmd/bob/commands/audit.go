package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/babybob/babybob/pkg/stores"
)

func newAuditCommand() *cobra.Command {
	var (
		action     string
		actor      string
		experiment string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List the workflow audit log",
		Long: `List audit entries, newest first. Every approve, revoke, backtest
completion, unit insertion, and seeding run appends one entry.`,
		Example: `  # Last 20 entries
  bob audit

  # Everything sydney revoked on FXCarry
  bob audit --actor sydney --action revoke --experiment FXCarry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			var filter stores.AuditFilter
			if action != "" {
				act := stores.AuditAction(action)
				filter.Action = &act
			}
			if actor != "" {
				filter.Actor = &actor
			}
			if experiment != "" {
				filter.Experiment = &experiment
			}

			entries, err := a.svc.Audit(ctx, filter, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tACTOR\tEXPERIMENT\tIMPLEMENTATION\tSTAGE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format(time.RFC3339),
					e.Action, e.Actor, e.Experiment, e.Implementation, e.Stage)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "filter by action (approve, revoke, run_backtest, insert_unit, seed_database)")
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor")
	cmd.Flags().StringVarP(&experiment, "experiment", "e", "", "filter by experiment")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum entries to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")

	return cmd
}
