package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babybob/babybob/pkg/review"
)

func newApproveCommand() *cobra.Command {
	var (
		stageToken string
		reviewer   string
	)

	cmd := &cobra.Command{
		Use:   "approve <experiment> [implementation]",
		Short: "Set approval flags for a unit or a whole experiment",
		Long: `Set the approval flag for a review stage. Without an implementation the
approval applies to every implementation of the experiment; each unit is
updated independently and per-unit outcomes are reported.

Without --reviewer the flag is set for every configured reviewer of the
stage. The stage's gate must already be satisfied.`,
		Example: `  # Sign off the config review of one unit as sydney
  bob approve FXCarry StandardImpl --stage config_review --reviewer sydney

  # Final-review every implementation of an experiment, all reviewers
  bob approve FXCarry --stage final_review`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target, err := parseTarget(args)
			if err != nil {
				return err
			}
			stage, err := review.ParseStage(stageToken)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			fmt.Printf("Approving %s for %s:\n", stage, target.Experiment)
			result, err := a.svc.Approve(ctx, target, stage, reviewer)
			return reportBatch(result, err)
		},
	}

	cmd.Flags().StringVarP(&stageToken, "stage", "s", "", "review stage (config_review, comparison_review, final_review)")
	cmd.Flags().StringVarP(&reviewer, "reviewer", "r", "", "reviewer identity (default: all configured reviewers)")
	cmd.MarkFlagRequired("stage")

	return cmd
}
