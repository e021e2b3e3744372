package review

import (
	"context"
	"fmt"
)

// ReviewerSets maps each approval stage to the reviewers whose individual
// sign-off is required for that stage to count as approved. A set of size
// one is the single-flag deployment mode; larger sets require every listed
// reviewer. The sets are resolved once at construction time.
type ReviewerSets map[Stage][]string

// For returns the reviewer set configured for the stage.
func (r ReviewerSets) For(stage Stage) []string {
	return r[stage]
}

// Validate checks that every approval stage has at least one reviewer.
func (r ReviewerSets) Validate() error {
	for _, stage := range ApprovalStages() {
		if len(r[stage]) == 0 {
			return fmt.Errorf("no reviewers configured for stage %s", stage)
		}
	}
	return nil
}

// UniformReviewers builds reviewer sets assigning the same reviewers to
// every approval stage.
func UniformReviewers(reviewers ...string) ReviewerSets {
	sets := make(ReviewerSets, len(ApprovalStages()))
	for _, stage := range ApprovalStages() {
		sets[stage] = append([]string(nil), reviewers...)
	}
	return sets
}

// Policy is the configuration-time behavior of the state machine.
type Policy struct {
	// Reviewers holds the required reviewer set per approval stage.
	Reviewers ReviewerSets

	// CascadeRevocation controls whether revoking a stage also clears the
	// approvals of downstream stages. The historical behavior is false:
	// later stages keep their approvals even when an earlier gate is
	// revoked.
	CascadeRevocation bool
}

// Target addresses the units an action applies to. An empty Implementation
// targets every implementation of the experiment (batch semantics).
type Target struct {
	Experiment     string
	Implementation string
}

// Key returns the unit key a single-unit target addresses.
func (t Target) Key() UnitKey {
	return UnitKey{Experiment: t.Experiment, Implementation: t.Implementation}
}

// BatchResult reports the per-unit outcomes of an action. Outcomes are in
// store order and include both applied and failed units.
type BatchResult struct {
	Action   string        `json:"action"`
	Outcomes []UnitOutcome `json:"outcomes"`
}

// Applied returns the keys of the units whose update was applied.
func (r *BatchResult) Applied() []UnitKey {
	var out []UnitKey
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o.Key)
		}
	}
	return out
}

// Machine enforces the pipeline's transition rules against a Store.
// It holds no unit state of its own: every action re-reads the targeted
// units so that gating always reflects the store's current flags.
type Machine struct {
	store  Store
	policy Policy
}

// NewMachine creates a state machine over the given store.
func NewMachine(store Store, policy Policy) (*Machine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := policy.Reviewers.Validate(); err != nil {
		return nil, err
	}
	return &Machine{store: store, policy: policy}, nil
}

// Policy returns the machine's configured policy.
func (m *Machine) Policy() Policy {
	return m.policy
}

// StageSatisfied reports whether the stage is satisfied on the unit: the
// backtest stage requires the completion flag, an approval stage requires
// every configured reviewer's flag.
func (m *Machine) StageSatisfied(u *ConfigUnit, stage Stage) bool {
	if stage == StageBacktest {
		return u.BacktestComplete
	}
	for _, reviewer := range m.policy.Reviewers.For(stage) {
		if !u.ReviewerApproved(stage, reviewer) {
			return false
		}
	}
	return true
}

// Approve flags the reviewer's sign-off for the stage on the targeted
// units. An empty reviewer applies every configured reviewer's flag for the
// stage. The stage's gate must be satisfied on each unit or that unit's
// update is rejected with a precondition error and no flag change.
func (m *Machine) Approve(ctx context.Context, target Target, stage Stage, reviewer string) (*BatchResult, error) {
	reviewers, err := m.resolveReviewers(stage, reviewer)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, "approve "+string(stage), target, func(u *ConfigUnit) error {
		if gate := stage.Gate(); gate != "" && !m.StageSatisfied(u, gate) {
			return NewPreconditionError(u.Key, stage, gate)
		}
		for _, r := range reviewers {
			if err := m.store.SetApproval(ctx, u.Key, stage, r, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// Revoke clears the reviewer's sign-off for the stage on the targeted
// units. An empty reviewer clears every configured reviewer's flag.
// Revocation has no precondition. Downstream approvals are left standing
// unless the policy enables cascading revocation.
func (m *Machine) Revoke(ctx context.Context, target Target, stage Stage, reviewer string) (*BatchResult, error) {
	reviewers, err := m.resolveReviewers(stage, reviewer)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, "revoke "+string(stage), target, func(u *ConfigUnit) error {
		for _, r := range reviewers {
			if err := m.store.SetApproval(ctx, u.Key, stage, r, false); err != nil {
				return err
			}
		}
		if !m.policy.CascadeRevocation {
			return nil
		}
		for _, down := range stage.Downstream() {
			for _, r := range m.policy.Reviewers.For(down) {
				if err := m.store.SetApproval(ctx, u.Key, down, r, false); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RunBacktest marks the targeted units' backtests complete. The actual
// backtest execution is delegated elsewhere; from the workflow's view this
// is a status flip gated on config-review approval.
func (m *Machine) RunBacktest(ctx context.Context, target Target) (*BatchResult, error) {
	return m.apply(ctx, "run backtest", target, func(u *ConfigUnit) error {
		if !m.StageSatisfied(u, StageConfigReview) {
			return NewPreconditionError(u.Key, StageBacktest, StageConfigReview)
		}
		return m.store.SetBacktestComplete(ctx, u.Key, true)
	})
}

// resolveReviewers validates the stage takes approvals and expands an empty
// reviewer to the stage's full configured set.
func (m *Machine) resolveReviewers(stage Stage, reviewer string) ([]string, error) {
	if !stage.IsApproval() {
		return nil, &Error{
			Kind:    KindInvalidStage,
			Message: fmt.Sprintf("stage %s does not take reviewer approvals", stage),
			Stage:   stage,
		}
	}
	configured := m.policy.Reviewers.For(stage)
	if reviewer == "" {
		return configured, nil
	}
	for _, r := range configured {
		if r == reviewer {
			return []string{reviewer}, nil
		}
	}
	return nil, &Error{
		Kind:    KindInvalidReviewer,
		Message: fmt.Sprintf("reviewer %q is not configured for stage %s", reviewer, stage),
		Stage:   stage,
	}
}

// apply runs the update against each targeted unit independently. A failure
// on one unit does not roll back updates already applied to others; mixed
// outcomes surface as a BatchError listing every unit.
func (m *Machine) apply(ctx context.Context, action string, target Target, update func(*ConfigUnit) error) (*BatchResult, error) {
	units, err := m.resolveTargets(ctx, target)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Action: action}
	for i := range units {
		u := &units[i]
		result.Outcomes = append(result.Outcomes, UnitOutcome{
			Key: u.Key,
			Err: update(u),
		})
	}

	applied, failed := 0, 0
	var firstErr error
	for _, o := range result.Outcomes {
		if o.OK() {
			applied++
		} else {
			failed++
			if firstErr == nil {
				firstErr = o.Err
			}
		}
	}

	switch {
	case failed == 0:
		return result, nil
	case applied == 0:
		// Nothing was applied: not a partial failure, report the cause.
		return result, firstErr
	default:
		return result, &BatchError{Action: action, Outcomes: result.Outcomes}
	}
}

// resolveTargets loads the units the target addresses.
func (m *Machine) resolveTargets(ctx context.Context, target Target) ([]ConfigUnit, error) {
	if target.Implementation != "" {
		u, err := m.store.GetUnit(ctx, UnitKey{
			Experiment:     target.Experiment,
			Implementation: target.Implementation,
		})
		if err != nil {
			return nil, err
		}
		return []ConfigUnit{*u}, nil
	}

	units, err := m.store.QueryUnits(ctx, Filter{Experiment: target.Experiment})
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, NewNotFoundError(UnitKey{Experiment: target.Experiment})
	}
	return units, nil
}
