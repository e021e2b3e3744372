package review

import "fmt"

// UnitKey identifies a ConfigUnit. The pair is unique within the store.
type UnitKey struct {
	Experiment     string `json:"experiment"`
	Implementation string `json:"implementation"`
}

// String returns the key in "experiment/implementation" form.
func (k UnitKey) String() string {
	return fmt.Sprintf("%s/%s", k.Experiment, k.Implementation)
}

// FrontierParam is one named numeric parameter of a unit's frontier.
// Parameter order is significant and preserved from the store.
type FrontierParam struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// ConfigUnit is one experiment/implementation under review, together with
// its workflow flags as last read from the store.
type ConfigUnit struct {
	Key      UnitKey `json:"key"`
	Universe string  `json:"universe"`

	// Frontier is an opaque frontier identifier; FrontierParams are the
	// ordered named parameters attached to it.
	Frontier       string          `json:"frontier"`
	FrontierParams []FrontierParam `json:"frontier_params,omitempty"`

	BacktestName string `json:"backtest_name"`
	BacktestUser string `json:"backtest_user"`

	BacktestComplete bool `json:"backtest_complete"`

	// Approvals holds the per-reviewer flags for each approval stage:
	// Approvals[stage][reviewer] == true means that reviewer has signed off.
	// A missing reviewer entry is equivalent to false.
	Approvals map[Stage]map[string]bool `json:"approvals,omitempty"`
}

// ReviewerApproved reports whether the named reviewer has flagged the stage.
func (u *ConfigUnit) ReviewerApproved(stage Stage, reviewer string) bool {
	if u.Approvals == nil {
		return false
	}
	return u.Approvals[stage][reviewer]
}

// Filter narrows a store query. Zero-value fields match everything.
type Filter struct {
	Experiment     string
	Implementation string
}

// Matches reports whether the unit satisfies the filter.
func (f Filter) Matches(u *ConfigUnit) bool {
	if f.Experiment != "" && u.Key.Experiment != f.Experiment {
		return false
	}
	if f.Implementation != "" && u.Key.Implementation != f.Implementation {
		return false
	}
	return true
}
