package compare

import (
	"reflect"
	"testing"
)

func TestBuildEmptyInput(t *testing.T) {
	table := Build(nil)
	if len(table.Rows) != 0 || len(table.Names) != 0 {
		t.Errorf("empty input produced %d rows, %d names", len(table.Rows), len(table.Names))
	}
}

func TestBuildSingleConfigHasNoDifferences(t *testing.T) {
	cfg := NewConfig().
		Set("strategy", String("Strategy_A")).
		Set("leverage", Number(2.0))
	table := Build([]Named{{Name: "A", Config: cfg}})

	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(table.Rows))
	}
	if keys := table.DifferingKeys(); len(keys) != 0 {
		t.Errorf("single config flagged differing rows: %v", keys)
	}
}

func TestBuildRowOrderIsFirstAppearance(t *testing.T) {
	a := NewConfig().
		Set("strategy", String("x")).
		Set("timeframe", String("1h"))
	b := NewConfig().
		Set("timeframe", String("1h")).
		Set("leverage", Number(1))
	table := Build([]Named{{Name: "A", Config: a}, {Name: "B", Config: b}})

	var keys []string
	for _, row := range table.Rows {
		keys = append(keys, row.Key)
	}
	want := []string{"strategy", "timeframe", "leverage"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("row order = %v, want %v", keys, want)
	}
}

func TestBuildFlagsDifferingRows(t *testing.T) {
	a := NewConfig().
		Set("timeframe", String("1h")).
		Set("risk_percent", Number(1.5))
	b := NewConfig().
		Set("timeframe", String("4h")).
		Set("risk_percent", Number(1.5))
	table := Build([]Named{{Name: "A", Config: a}, {Name: "B", Config: b}})

	if got := table.DifferingKeys(); !reflect.DeepEqual(got, []string{"timeframe"}) {
		t.Errorf("differing keys = %v, want [timeframe]", got)
	}
}

func TestBuildMissingValueIsNotADifference(t *testing.T) {
	a := NewConfig().Set("leverage", Number(1))
	b := NewConfig().Set("strategy", String("x"))
	table := Build([]Named{{Name: "A", Config: a}, {Name: "B", Config: b}})

	for _, row := range table.Rows {
		if row.Differing {
			t.Errorf("row %q flagged though only one config has it", row.Key)
		}
	}
	lev := table.Row("leverage")
	if lev.Cells[1].Present {
		t.Error("missing cell reported present")
	}
}

func TestCanonicalNumberForms(t *testing.T) {
	// Whole floats and integers canonicalize to the same string.
	a := NewConfig().Set("version", Number(1))
	b := NewConfig().Set("version", Number(1.0))
	table := Build([]Named{{Name: "A", Config: a}, {Name: "B", Config: b}})
	if table.Row("version").Differing {
		t.Error("1 vs 1.0 flagged as differing")
	}
	if got := Number(1.0).Canonical(); got != "1" {
		t.Errorf("canonical(1.0) = %q, want \"1\"", got)
	}
	if got := Number(1.5).Canonical(); got != "1.5" {
		t.Errorf("canonical(1.5) = %q, want \"1.5\"", got)
	}
}

func TestNestedSentinelAndDrillDown(t *testing.T) {
	a := NewConfig().
		Set("x", Number(1)).
		Set("nested", Nested(NewConfig().Set("p", Number(1))))
	b := NewConfig().
		Set("x", Number(1)).
		Set("nested", Nested(NewConfig().Set("p", Number(2))))
	table := Build([]Named{{Name: "A", Config: a}, {Name: "B", Config: b}})

	// Top level: both nested cells show the sentinel, so no difference.
	row := table.Row("nested")
	if row.Cells[0].Display != NestedSentinel {
		t.Errorf("display = %q, want %q", row.Cells[0].Display, NestedSentinel)
	}
	if row.Differing {
		t.Error("nested row flagged differing at top level")
	}
	if table.Row("x").Differing {
		t.Error("x flagged differing")
	}

	// Drill-down exposes the disagreement on p.
	nested, err := table.Nested("nested")
	if err != nil {
		t.Fatalf("drill-down: %v", err)
	}
	if got := nested.DifferingKeys(); !reflect.DeepEqual(got, []string{"p"}) {
		t.Errorf("nested differing keys = %v, want [p]", got)
	}
}

func TestNestedDrillDownWithMissingConfig(t *testing.T) {
	a := NewConfig().Set("advanced_params", Nested(NewConfig().Set("sharpe_ratio", Number(1.2))))
	b := NewConfig().Set("strategy", String("x"))
	table := Build([]Named{{Name: "A", Config: a}, {Name: "B", Config: b}})

	nested, err := table.Nested("advanced_params")
	if err != nil {
		t.Fatalf("drill-down: %v", err)
	}
	row := nested.Row("sharpe_ratio")
	if row == nil {
		t.Fatal("no sharpe_ratio row")
	}
	if row.Cells[1].Present {
		t.Error("config without the key contributed a present cell")
	}
	if row.Differing {
		t.Error("all-but-one-missing row flagged differing")
	}
}

func TestNestedDrillDownErrors(t *testing.T) {
	a := NewConfig().Set("x", Number(1))
	table := Build([]Named{{Name: "A", Config: a}})

	if _, err := table.Nested("missing"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := table.Nested("x"); err == nil {
		t.Error("expected error for scalar key")
	}
}

func TestScalarVsNestedDiffers(t *testing.T) {
	a := NewConfig().Set("params", Nested(NewConfig().Set("p", Number(1))))
	b := NewConfig().Set("params", String("none"))
	table := Build([]Named{{Name: "A", Config: a}, {Name: "B", Config: b}})
	if !table.Row("params").Differing {
		t.Error("nested vs scalar not flagged")
	}
}

func TestBuildIsStableAcrossCalls(t *testing.T) {
	a := NewConfig().Set("k1", Number(1)).Set("k2", String("v"))
	b := NewConfig().Set("k3", Bool(true)).Set("k1", Number(2))
	configs := []Named{{Name: "A", Config: a}, {Name: "B", Config: b}}

	first := Build(configs)
	for i := 0; i < 10; i++ {
		if got := Build(configs); !reflect.DeepEqual(got.Rows, first.Rows) {
			t.Fatal("repeated build produced a different table")
		}
	}
}

func TestToleranceEqualPredicate(t *testing.T) {
	a := NewConfig().Set("sharpe_ratio", Number(1.20))
	b := NewConfig().Set("sharpe_ratio", Number(1.21))
	configs := []Named{{Name: "A", Config: a}, {Name: "B", Config: b}}

	if !Build(configs).Row("sharpe_ratio").Differing {
		t.Error("exact predicate missed 1.20 vs 1.21")
	}
	table := Build(configs, WithEqualFunc(ToleranceEqual(0.05)))
	if table.Row("sharpe_ratio").Differing {
		t.Error("tolerance predicate flagged values within tolerance")
	}
}

func TestToleranceIsRelative(t *testing.T) {
	// The tolerance scales with magnitude: 10000 vs 10400 is a 4%
	// difference and must pass a 5% tolerance.
	a := NewConfig().Set("initial_capital", Number(10000))
	b := NewConfig().Set("initial_capital", Number(10400))
	configs := []Named{{Name: "A", Config: a}, {Name: "B", Config: b}}

	table := Build(configs, WithEqualFunc(ToleranceEqual(0.05)))
	if table.Row("initial_capital").Differing {
		t.Error("4% difference flagged under 5% relative tolerance")
	}

	c := NewConfig().Set("initial_capital", Number(10600))
	configs = []Named{{Name: "A", Config: a}, {Name: "C", Config: c}}
	table = Build(configs, WithEqualFunc(ToleranceEqual(0.05)))
	if !table.Row("initial_capital").Differing {
		t.Error("6% difference not flagged under 5% relative tolerance")
	}
}

func TestToleranceIsPairwise(t *testing.T) {
	// 1.0 and 1.1 disagree beyond tolerance even though both are within
	// tolerance of the middle value.
	configs := []Named{
		{Name: "A", Config: NewConfig().Set("v", Number(1.0))},
		{Name: "B", Config: NewConfig().Set("v", Number(1.05))},
		{Name: "C", Config: NewConfig().Set("v", Number(1.1))},
	}
	table := Build(configs, WithEqualFunc(ToleranceEqual(0.05)))
	if !table.Row("v").Differing {
		t.Error("pairwise disagreement not flagged")
	}
}

func TestNestedTableInheritsPredicate(t *testing.T) {
	a := NewConfig().Set("params", Nested(NewConfig().Set("p", Number(1.00))))
	b := NewConfig().Set("params", Nested(NewConfig().Set("p", Number(1.01))))
	table := Build(
		[]Named{{Name: "A", Config: a}, {Name: "B", Config: b}},
		WithEqualFunc(ToleranceEqual(0.05)),
	)
	nested, err := table.Nested("params")
	if err != nil {
		t.Fatalf("drill-down: %v", err)
	}
	if nested.Row("p").Differing {
		t.Error("nested table did not inherit the tolerance predicate")
	}
}
