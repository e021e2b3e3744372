package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/babybob/babybob/pkg/review"
)

// Seed populates an empty database with a deterministic sample dataset
// spread across the workflow stages, for demos and local development.
// Seeding a non-empty database is rejected.
func (s *SQLiteStore) Seed(ctx context.Context) (int, error) {
	existing, err := s.QueryUnits(ctx, review.Filter{})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, fmt.Errorf("database already contains %d units, refusing to seed", len(existing))
	}

	units := SampleUnits()
	for _, u := range units {
		if err := s.InsertUnit(ctx, u); err != nil {
			return 0, err
		}
	}

	entry := &AuditEntry{
		Action:    AuditActionSeedDatabase,
		Actor:     "seed",
		Timestamp: time.Now().UTC(),
	}
	if err := s.AppendAudit(ctx, entry); err != nil {
		return 0, err
	}
	return len(units), nil
}

// SampleUnits returns the seed dataset: fifteen units cycling through
// universes, experiments, and implementations, staged so every derived
// status appears at least once.
func SampleUnits() []review.ConfigUnit {
	universes := []string{"US", "EU", "APAC", "LATAM", "GLOBAL"}
	experiments := []string{"MoneyMarketModel", "EquityStrategy", "CommodityHedge", "FXCarry", "VolatilityArb"}
	implementations := []string{"StandardImpl", "AlternativeImpl", "ExperimentalImpl"}
	reviewers := []string{"sydney", "joey"}

	units := make([]review.ConfigUnit, 0, 15)
	for i := 0; i < 15; i++ {
		experiment := experiments[i%len(experiments)]
		implementation := implementations[i%len(implementations)]

		u := review.ConfigUnit{
			Key: review.UnitKey{
				Experiment:     experiment,
				Implementation: implementation,
			},
			Universe: universes[i%len(universes)],
			Frontier: fmt.Sprintf("frontier_%d", i+1),
			FrontierParams: []review.FrontierParam{
				{Key: "param_1", Value: 0.5 + float64(i)*0.1},
				{Key: "param_2", Value: 1.0 + float64(i)*0.2},
				{Key: "param_3", Value: 2.5},
			},
			BacktestName: fmt.Sprintf("bt_%s_%s_%d", experiment[:3], implementation[:3], i+1),
			BacktestUser: reviewers[i%len(reviewers)],
		}

		// Stage the unit by cycling through the workflow positions:
		// 0 just loaded, 1 config approved, 2 backtest done, 3 comparison
		// approved, 4 fully complete.
		state := i % 5
		if state >= 1 {
			setAll(&u, review.StageConfigReview, reviewers)
		}
		if state >= 2 {
			u.BacktestComplete = true
		}
		if state >= 3 {
			setAll(&u, review.StageComparisonReview, reviewers)
		}
		if state >= 4 {
			setAll(&u, review.StageFinalReview, reviewers)
		}

		units = append(units, u)
	}
	return units
}

func setAll(u *review.ConfigUnit, stage review.Stage, reviewers []string) {
	if u.Approvals == nil {
		u.Approvals = make(map[review.Stage]map[string]bool)
	}
	flags := make(map[string]bool, len(reviewers))
	for _, r := range reviewers {
		flags[r] = true
	}
	u.Approvals[stage] = flags
}
