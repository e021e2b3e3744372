package review

import (
	"context"
	"sort"
)

// Status is the derived workflow position of a unit. It is never stored:
// it is recomputed from the unit's flags on every read, so a flag change
// in another session is reflected on the next summary.
type Status string

const (
	StatusConfigReviewNeeded     Status = "config_review_needed"
	StatusBacktestNeeded         Status = "backtest_needed"
	StatusComparisonReviewNeeded Status = "comparison_review_needed"
	StatusFinalReviewNeeded      Status = "final_review_needed"
	StatusComplete               Status = "complete"
)

// Statuses returns every status in pipeline order.
func Statuses() []Status {
	return []Status{
		StatusConfigReviewNeeded,
		StatusBacktestNeeded,
		StatusComparisonReviewNeeded,
		StatusFinalReviewNeeded,
		StatusComplete,
	}
}

// Label returns the human-readable form used by the CLI tables.
func (s Status) Label() string {
	switch s {
	case StatusConfigReviewNeeded:
		return "Config Review Needed"
	case StatusBacktestNeeded:
		return "Backtest Needed"
	case StatusComparisonReviewNeeded:
		return "Comparison Review Needed"
	case StatusFinalReviewNeeded:
		return "Final Review Needed"
	case StatusComplete:
		return "Complete"
	default:
		return string(s)
	}
}

// NextStage returns the stage the unit is waiting on, or "" when complete.
func (s Status) NextStage() Stage {
	switch s {
	case StatusConfigReviewNeeded:
		return StageConfigReview
	case StatusBacktestNeeded:
		return StageBacktest
	case StatusComparisonReviewNeeded:
		return StageComparisonReview
	case StatusFinalReviewNeeded:
		return StageFinalReview
	default:
		return ""
	}
}

// Status derives the unit's workflow position from its flags. The check
// runs from the last stage backwards so that the most advanced satisfied
// stage wins, regardless of the state of earlier stages.
func (m *Machine) Status(u *ConfigUnit) Status {
	switch {
	case m.StageSatisfied(u, StageFinalReview):
		return StatusComplete
	case m.StageSatisfied(u, StageComparisonReview):
		return StatusFinalReviewNeeded
	case u.BacktestComplete:
		return StatusComparisonReviewNeeded
	case m.StageSatisfied(u, StageConfigReview):
		return StatusBacktestNeeded
	default:
		return StatusConfigReviewNeeded
	}
}

// UnitSummary is one row of the dashboard: a unit together with its derived
// status and the reviewers still outstanding on its pending stage.
type UnitSummary struct {
	Unit   ConfigUnit `json:"unit"`
	Status Status     `json:"status"`

	// PendingReviewers lists the configured reviewers for the unit's next
	// stage who have not yet signed off. Empty when the unit is complete or
	// waiting on the backtest.
	PendingReviewers []string `json:"pending_reviewers,omitempty"`
}

// Summarize derives the summary row for one unit.
func (m *Machine) Summarize(u *ConfigUnit) UnitSummary {
	s := UnitSummary{Unit: *u, Status: m.Status(u)}
	if next := s.Status.NextStage(); next != "" && next.IsApproval() {
		for _, reviewer := range m.policy.Reviewers.For(next) {
			if !u.ReviewerApproved(next, reviewer) {
				s.PendingReviewers = append(s.PendingReviewers, reviewer)
			}
		}
	}
	return s
}

// SummarizeAll loads the units matching the filter and derives a summary
// row for each, in store order.
func (m *Machine) SummarizeAll(ctx context.Context, filter Filter) ([]UnitSummary, error) {
	units, err := m.store.QueryUnits(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]UnitSummary, 0, len(units))
	for i := range units {
		out = append(out, m.Summarize(&units[i]))
	}
	return out, nil
}

// NeedsApproval returns the summaries of units currently waiting on a
// reviewer approval, skipping complete units and units waiting on their
// backtest. When reviewer is non-empty, only units where that specific
// reviewer is outstanding are returned.
func (m *Machine) NeedsApproval(ctx context.Context, filter Filter, reviewer string) ([]UnitSummary, error) {
	summaries, err := m.SummarizeAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []UnitSummary
	for _, s := range summaries {
		if len(s.PendingReviewers) == 0 {
			continue
		}
		if reviewer != "" && !contains(s.PendingReviewers, reviewer) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ExperimentProgress aggregates one experiment's units by derived status.
type ExperimentProgress struct {
	Experiment string         `json:"experiment"`
	Total      int            `json:"total"`
	Complete   int            `json:"complete"`
	ByStatus   map[Status]int `json:"by_status"`
}

// Done reports whether every unit of the experiment is complete.
func (p ExperimentProgress) Done() bool {
	return p.Total > 0 && p.Complete == p.Total
}

// Progress groups the units matching the filter by experiment and counts
// them by derived status. Experiments are returned in name order.
func (m *Machine) Progress(ctx context.Context, filter Filter) ([]ExperimentProgress, error) {
	summaries, err := m.SummarizeAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	byExperiment := make(map[string]*ExperimentProgress)
	for _, s := range summaries {
		name := s.Unit.Key.Experiment
		p, ok := byExperiment[name]
		if !ok {
			p = &ExperimentProgress{Experiment: name, ByStatus: make(map[Status]int)}
			byExperiment[name] = p
		}
		p.Total++
		p.ByStatus[s.Status]++
		if s.Status == StatusComplete {
			p.Complete++
		}
	}

	out := make([]ExperimentProgress, 0, len(byExperiment))
	for _, p := range byExperiment {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Experiment < out[j].Experiment })
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
