package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/babybob/babybob/pkg/review"
)

func newStatusCommand() *cobra.Command {
	var (
		experiment string
		needsToken string
		reviewer   string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the review status of every unit",
		Long: `Render the summary table: one row per unit with its derived status and
the reviewers still pending on the current stage, followed by per-experiment
backtest progress. Statuses are recomputed from the stored flags on every
invocation, never cached.`,
		Example: `  # Full summary table
  bob status

  # One experiment, re-rendered whenever another session writes the store
  bob status --experiment FXCarry --watch

  # Units waiting on final review
  bob status --needs final_review

  # Units still missing joey's sign-off
  bob status --reviewer joey`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var needsStage review.Stage
			if needsToken != "" {
				stage, err := review.ParseStage(needsToken)
				if err != nil {
					return err
				}
				needsStage = stage
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			render := func() error {
				return renderStatus(cmd, a, experiment, needsStage, reviewer)
			}
			if err := render(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			fmt.Fprintln(os.Stderr, "Watching for changes (ctrl-c to stop)...")
			err = a.svc.WatchStore(ctx, 0, func() {
				if err := render(); err != nil {
					fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
				}
			})
			if ctx.Err() != nil {
				return nil // interrupted, not an error
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&experiment, "experiment", "e", "", "limit to one experiment")
	cmd.Flags().StringVar(&needsToken, "needs", "", "only units waiting on this stage")
	cmd.Flags().StringVarP(&reviewer, "reviewer", "r", "", "only units missing this reviewer's sign-off")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render when the store file changes")

	return cmd
}

func renderStatus(cmd *cobra.Command, a *app, experiment string, needsStage review.Stage, reviewer string) error {
	ctx := cmd.Context()
	filter := review.Filter{Experiment: experiment}

	var (
		summaries []review.UnitSummary
		err       error
	)
	if reviewer != "" || needsStage != "" {
		summaries, err = a.svc.NeedsApproval(ctx, filter, reviewer)
	} else {
		summaries, err = a.svc.SummarizeAll(ctx, filter)
	}
	if err != nil {
		return err
	}
	if needsStage != "" {
		var kept []review.UnitSummary
		for _, s := range summaries {
			if s.Status.NextStage() == needsStage {
				kept = append(kept, s)
			}
		}
		summaries = kept
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EXPERIMENT\tIMPLEMENTATION\tUNIVERSE\tSTATUS\tPENDING")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.Unit.Key.Experiment,
			s.Unit.Key.Implementation,
			s.Unit.Universe,
			s.Status.Label(),
			strings.Join(s.PendingReviewers, ", "),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	progress, err := a.svc.Progress(ctx, filter)
	if err != nil {
		return err
	}
	if len(progress) > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
		for _, p := range progress {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d complete\n", p.Experiment, p.Complete, p.Total)
		}
	}
	return nil
}
