package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBacktestCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "backtest <experiment> [implementation]",
		Short: "Mark backtests complete",
		Long: `Mark the targeted units' backtests complete. No backtest is executed
here: the command records the completion flag once the run has finished
elsewhere. Requires the unit's config review to be fully approved.`,
		Example: `  # Record a finished backtest for one unit
  bob backtest FXCarry StandardImpl --user sydney

  # Record finished backtests for every implementation
  bob backtest FXCarry`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target, err := parseTarget(args)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			fmt.Printf("Marking backtests complete for %s:\n", target.Experiment)
			result, err := a.svc.RunBacktest(ctx, target, user)
			return reportBatch(result, err)
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user recorded in the audit log")

	return cmd
}
