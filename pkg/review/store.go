package review

import "context"

// Store is the contract the workflow requires from the ConfigRecord store.
// Implementations must make every flag write an atomic single-unit
// read-modify-write keyed by (experiment, implementation); a write must
// never replace a previously loaded full snapshot.
type Store interface {
	// QueryUnits returns the units matching the filter, including their
	// current approval flags. Order is stable (experiment, implementation).
	QueryUnits(ctx context.Context, filter Filter) ([]ConfigUnit, error)

	// GetUnit returns the unit with the given key, or a not-found error.
	GetUnit(ctx context.Context, key UnitKey) (*ConfigUnit, error)

	// SetApproval sets or clears one reviewer's flag for an approval stage.
	// Returns a not-found error when the unit does not exist.
	SetApproval(ctx context.Context, key UnitKey, stage Stage, reviewer string, approved bool) error

	// SetBacktestComplete sets or clears the unit's backtest completion flag.
	// Returns a not-found error when the unit does not exist.
	SetBacktestComplete(ctx context.Context, key UnitKey, complete bool) error
}
