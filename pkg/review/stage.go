package review

import "fmt"

// Stage identifies one step of the review pipeline.
type Stage string

const (
	// StageConfigReview is the initial review of a unit's configuration.
	StageConfigReview Stage = "config_review"

	// StageBacktest is the backtest execution step. It is binary
	// complete/not-complete rather than a reviewer approval, but it
	// participates in the same gating chain.
	StageBacktest Stage = "backtest"

	// StageComparisonReview is the review of backtest comparison output.
	StageComparisonReview Stage = "comparison_review"

	// StageFinalReview is the final sign-off before a unit is complete.
	StageFinalReview Stage = "final_review"
)

// Stages returns the pipeline stages in gating order.
func Stages() []Stage {
	return []Stage{StageConfigReview, StageBacktest, StageComparisonReview, StageFinalReview}
}

// ApprovalStages returns the stages that carry reviewer approvals,
// in gating order. StageBacktest is excluded.
func ApprovalStages() []Stage {
	return []Stage{StageConfigReview, StageComparisonReview, StageFinalReview}
}

// IsApproval returns true if the stage is signed off by reviewers.
// The backtest stage is a completion flag, not an approval.
func (s Stage) IsApproval() bool {
	return s == StageConfigReview || s == StageComparisonReview || s == StageFinalReview
}

// Gate returns the stage whose satisfaction is required before this stage
// may advance, or "" for the first stage.
func (s Stage) Gate() Stage {
	switch s {
	case StageBacktest:
		return StageConfigReview
	case StageComparisonReview:
		return StageBacktest
	case StageFinalReview:
		return StageComparisonReview
	default:
		return ""
	}
}

// Downstream returns the approval stages that come after this stage in the
// pipeline. Used by cascading revocation.
func (s Stage) Downstream() []Stage {
	var out []Stage
	seen := false
	for _, st := range Stages() {
		if seen && st.IsApproval() {
			out = append(out, st)
		}
		if st == s {
			seen = true
		}
	}
	return out
}

// ApprovalKind returns the flag family name the store uses for this stage.
// These tokens are part of the persistent schema and predate the stage names.
func (s Stage) ApprovalKind() string {
	switch s {
	case StageConfigReview:
		return "config"
	case StageComparisonReview:
		return "comparison"
	case StageFinalReview:
		return "final_summary"
	default:
		return ""
	}
}

// Validate checks that the stage is one of the known pipeline stages.
func (s Stage) Validate() error {
	switch s {
	case StageConfigReview, StageBacktest, StageComparisonReview, StageFinalReview:
		return nil
	default:
		return fmt.Errorf("invalid stage: %s", s)
	}
}

// ParseStage resolves a stage token to a Stage. It accepts both the stage
// names and the store's shorter approval-kind tokens.
func ParseStage(token string) (Stage, error) {
	switch token {
	case string(StageConfigReview), "config":
		return StageConfigReview, nil
	case string(StageBacktest):
		return StageBacktest, nil
	case string(StageComparisonReview), "comparison":
		return StageComparisonReview, nil
	case string(StageFinalReview), "final_summary", "final":
		return StageFinalReview, nil
	default:
		return "", NewInvalidStageError(token)
	}
}
