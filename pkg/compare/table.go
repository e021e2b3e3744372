package compare

import "fmt"

// NestedSentinel is the display token substituted for nested parameter
// maps in a top-level table. The token is part of rendered output and of
// the canonical form, so two nested values never disagree at the top level.
const NestedSentinel = "[dict]"

// Named pairs a display name with its Config. Slice order is column order.
type Named struct {
	Name   string  `json:"name"`
	Config *Config `json:"config"`
}

// Cell is one table cell. Display is the canonical string shown and
// compared; Nested retains the original nested map for drill-down when the
// cell's value is a nested parameter map.
type Cell struct {
	Present bool    `json:"present"`
	Display string  `json:"display,omitempty"`
	Nested  *Config `json:"-"`
}

// Row is one parameter across all configs. Cells align with Table.Names.
type Row struct {
	Key       string `json:"key"`
	Cells     []Cell `json:"cells"`
	Differing bool   `json:"differing"`
}

// Table is a row-aligned comparison of a set of named configs.
type Table struct {
	Names []string `json:"names"`
	Rows  []Row    `json:"rows"`

	equal EqualFunc
}

// Option adjusts table construction.
type Option func(*Table)

// WithEqualFunc replaces the difference predicate. The default is
// ExactEqual.
func WithEqualFunc(eq EqualFunc) Option {
	return func(t *Table) {
		if eq != nil {
			t.equal = eq
		}
	}
}

// Build constructs the comparison table for the given configs. Row order
// is the first-appearance order of keys across the configs in column
// order, so identical input always yields an identical table. An empty or
// single-config input yields a table with no differing rows.
func Build(configs []Named, opts ...Option) *Table {
	t := &Table{equal: ExactEqual}
	for _, opt := range opts {
		opt(t)
	}
	for _, nc := range configs {
		t.Names = append(t.Names, nc.Name)
	}

	for _, key := range unionKeys(configs) {
		row := Row{Key: key}
		for _, nc := range configs {
			row.Cells = append(row.Cells, makeCell(nc.Config, key))
		}
		row.Differing = t.rowDiffers(row.Cells)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Row returns the row for a key, or nil when the key is absent.
func (t *Table) Row(key string) *Row {
	for i := range t.Rows {
		if t.Rows[i].Key == key {
			return &t.Rows[i]
		}
	}
	return nil
}

// DifferingKeys returns the keys of the rows flagged as differing, in row
// order.
func (t *Table) DifferingKeys() []string {
	var out []string
	for _, row := range t.Rows {
		if row.Differing {
			out = append(out, row.Key)
		}
	}
	return out
}

// Nested builds the secondary comparison table for one top-level key whose
// value is a nested parameter map in at least one config. Columns are the
// same config set; a config without a nested map at the key contributes
// all-missing cells. Returns an error when no config nests at the key.
func (t *Table) Nested(key string, opts ...Option) (*Table, error) {
	row := t.Row(key)
	if row == nil {
		return nil, fmt.Errorf("no row for key %q", key)
	}

	configs := make([]Named, len(t.Names))
	found := false
	for i, name := range t.Names {
		configs[i] = Named{Name: name, Config: row.Cells[i].Nested}
		if row.Cells[i].Nested != nil {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("no nested mapping at key %q", key)
	}

	if len(opts) == 0 {
		opts = []Option{WithEqualFunc(t.equal)}
	}
	return Build(configs, opts...), nil
}

func makeCell(cfg *Config, key string) Cell {
	if cfg == nil {
		return Cell{}
	}
	v, ok := cfg.Get(key)
	if !ok {
		return Cell{}
	}
	cell := Cell{Present: true, Display: v.Canonical()}
	if v.IsNested() {
		cell.Nested = v.NestedConfig()
	}
	return cell
}

// rowDiffers reports whether any pair of present cells disagrees under the
// table's predicate. Missing cells never count as a distinct value.
func (t *Table) rowDiffers(cells []Cell) bool {
	var present []string
	for _, c := range cells {
		if c.Present {
			present = append(present, c.Display)
		}
	}
	// Pairwise, not first-against-rest: a tolerance predicate is not
	// transitive, so a disagreeing pair can hide behind a middle value.
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			if !t.equal(present[i], present[j]) {
				return true
			}
		}
	}
	return false
}

// unionKeys returns the union of all config keys in first-appearance order.
func unionKeys(configs []Named) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, nc := range configs {
		if nc.Config == nil {
			continue
		}
		for _, k := range nc.Config.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
