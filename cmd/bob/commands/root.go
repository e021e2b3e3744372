package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bob",
		Short: "bob - Backtest Review Workflow",
		Long: `bob tracks trading-strategy experiments through a four-stage approval
pipeline: config review, backtest, comparison review, and final review.

Features:
  - Per-reviewer approval flags with configurable reviewer sets
  - Gated stage transitions with derived, never-stored statuses
  - Batch actions over every implementation of an experiment
  - Config diff tables with nested drill-down and tolerance comparison
  - Append-only audit log of every workflow write`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newApproveCommand())
	rootCmd.AddCommand(newRevokeCommand())
	rootCmd.AddCommand(newBacktestCommand())
	rootCmd.AddCommand(newCompareCommand())
	rootCmd.AddCommand(newAuditCommand())

	return rootCmd
}
