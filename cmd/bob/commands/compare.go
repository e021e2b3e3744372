package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/babybob/babybob/pkg/compare"
	"github.com/babybob/babybob/pkg/review"
	"github.com/babybob/babybob/pkg/service"
)

func newCompareCommand() *cobra.Command {
	var (
		experiment string
		presets    []string
		files      []string
		nestedKey  string
		tolerance  float64
		diffOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Build a config comparison table",
		Long: `Compare configurations side by side: every parameter appearing in any
config becomes a row, differing rows are marked, and nested parameter maps
collapse to a single token at the top level. Drill into one nested
parameter with --nested.

Configs come from an experiment (one per implementation), from named
presets, from JSON files, or any mix. Equality is exact canonical-string
comparison unless --tolerance switches numeric rows to relative-tolerance
comparison.`,
		Example: `  # Compare every implementation of an experiment
  bob compare --experiment FXCarry

  # Compare two official book presets, numbers within 5% considered equal
  bob compare --preset "RC EDI" --preset "RC AE" --tolerance 0.05

  # Drill into the nested advanced parameters
  bob compare --experiment FXCarry --nested frontier_params

  # Mix an ad hoc JSON config in
  bob compare --preset "RC EDI" --file candidate.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if experiment == "" && len(presets) == 0 && len(files) == 0 {
				return fmt.Errorf("nothing to compare: pass --experiment, --preset, or --file")
			}

			session := compare.NewSession()

			if experiment != "" {
				a, err := openApp(ctx)
				if err != nil {
					return err
				}
				defer a.close(ctx)

				units, err := a.svc.LoadUnits(ctx, review.Filter{Experiment: experiment})
				if err != nil {
					return err
				}
				if len(units) == 0 {
					return fmt.Errorf("no units for experiment %q", experiment)
				}
				for i := range units {
					u := &units[i]
					session.Load(u.Key.Implementation, service.ConfigForUnit(u))
				}
			}

			for _, name := range presets {
				cfg, ok := compare.Preset(name)
				if !ok {
					return fmt.Errorf("unknown preset %q (have: %s)", name, strings.Join(compare.PresetNames(), ", "))
				}
				session.Load(name, cfg)
			}

			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				if _, err := session.LoadJSON(name, data); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}

			var opts []compare.Option
			if cmd.Flags().Changed("tolerance") {
				opts = append(opts, compare.WithEqualFunc(compare.ToleranceEqual(tolerance)))
			}

			table := session.Compare(opts...)
			if nestedKey != "" {
				nested, err := table.Nested(nestedKey)
				if err != nil {
					return err
				}
				table = nested
			}

			return renderTable(cmd, table, diffOnly)
		},
	}

	cmd.Flags().StringVarP(&experiment, "experiment", "e", "", "compare every implementation of this experiment")
	cmd.Flags().StringArrayVarP(&presets, "preset", "p", nil, "official book preset to include (repeatable)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "JSON config file to include (repeatable)")
	cmd.Flags().StringVarP(&nestedKey, "nested", "n", "", "drill into this nested parameter")
	cmd.Flags().Float64VarP(&tolerance, "tolerance", "t", 0, "relative tolerance for numeric comparison")
	cmd.Flags().BoolVar(&diffOnly, "diff-only", false, "only show differing rows")

	return cmd
}

func renderTable(cmd *cobra.Command, table *compare.Table, diffOnly bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "PARAMETER\t%s\t\n", strings.Join(table.Names, "\t"))
	shown := 0
	for _, row := range table.Rows {
		if diffOnly && !row.Differing {
			continue
		}
		shown++
		marker := ""
		if row.Differing {
			marker = "*"
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			if c.Present {
				cells[i] = c.Display
			} else {
				cells[i] = "-"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.Key, strings.Join(cells, "\t"), marker)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if diffs := table.DifferingKeys(); len(diffs) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d differing parameter(s): %s\n", len(diffs), strings.Join(diffs, ", "))
	} else if shown > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "\nNo differences.")
	}
	return nil
}
