package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babybob/babybob/pkg/review"
)

func newRevokeCommand() *cobra.Command {
	var (
		stageToken string
		reviewer   string
	)

	cmd := &cobra.Command{
		Use:   "revoke <experiment> [implementation]",
		Short: "Clear approval flags for a unit or a whole experiment",
		Long: `Clear the approval flag for a review stage. Revocation has no gate: a
flag can be cleared at any time. Approvals already granted for later
stages are left standing unless cascade_revocation is enabled in the
configuration.`,
		Example: `  # Withdraw joey's comparison-review sign-off on one unit
  bob revoke FXCarry StandardImpl --stage comparison_review --reviewer joey`,
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

			fmt.Printf("Revoking %s for %s:\n", stage, target.Experiment)
			result, err := a.svc.Revoke(ctx, target, stage, reviewer)
			return reportBatch(result, err)
		},
	}

	cmd.Flags().StringVarP(&stageToken, "stage", "s", "", "review stage (config_review, comparison_review, final_review)")
	cmd.Flags().StringVarP(&reviewer, "reviewer", "r", "", "reviewer identity (default: all configured reviewers)")
	cmd.MarkFlagRequired("stage")

	return cmd
}
