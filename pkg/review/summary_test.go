package review

import (
	"context"
	"reflect"
	"testing"
)

func TestSummarizePendingReviewers(t *testing.T) {
	store := newMemStore(testUnit("FXCarry", "StandardImpl"))
	m := newTestMachine(t, store)
	ctx := context.Background()
	target := Target{Experiment: "FXCarry", Implementation: "StandardImpl"}

	if _, err := m.Approve(ctx, target, StageConfigReview, "sydney"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	u, _ := store.GetUnit(ctx, target.Key())
	s := m.Summarize(u)
	if s.Status != StatusConfigReviewNeeded {
		t.Errorf("status = %s, want %s", s.Status, StatusConfigReviewNeeded)
	}
	if !reflect.DeepEqual(s.PendingReviewers, []string{"joey"}) {
		t.Errorf("pending = %v, want [joey]", s.PendingReviewers)
	}
}

func TestSummarizeBacktestNeededHasNoPendingReviewers(t *testing.T) {
	store := newMemStore(testUnit("FXCarry", "StandardImpl"))
	m := newTestMachine(t, store)
	ctx := context.Background()
	target := Target{Experiment: "FXCarry", Implementation: "StandardImpl"}

	if _, err := m.Approve(ctx, target, StageConfigReview, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	u, _ := store.GetUnit(ctx, target.Key())
	s := m.Summarize(u)
	if s.Status != StatusBacktestNeeded {
		t.Errorf("status = %s, want %s", s.Status, StatusBacktestNeeded)
	}
	if len(s.PendingReviewers) != 0 {
		t.Errorf("pending = %v, want none", s.PendingReviewers)
	}
}

func TestSummarizeAllOrder(t *testing.T) {
	store := newMemStore(
		testUnit("FXCarry", "VolScaledImpl"),
		testUnit("EquityMomentum", "StandardImpl"),
		testUnit("FXCarry", "StandardImpl"),
	)
	m := newTestMachine(t, store)

	summaries, err := m.SummarizeAll(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("summarize all: %v", err)
	}
	var got []string
	for _, s := range summaries {
		got = append(got, s.Unit.Key.String())
	}
	want := []string{
		"EquityMomentum/StandardImpl",
		"FXCarry/StandardImpl",
		"FXCarry/VolScaledImpl",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestNeedsApprovalFiltersByReviewer(t *testing.T) {
	store := newMemStore(
		testUnit("FXCarry", "StandardImpl"),
		testUnit("FXCarry", "VolScaledImpl"),
	)
	m := newTestMachine(t, store)
	ctx := context.Background()

	// sydney has signed off StandardImpl; only joey is outstanding there.
	if _, err := m.Approve(ctx, Target{Experiment: "FXCarry", Implementation: "StandardImpl"}, StageConfigReview, "sydney"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	forSydney, err := m.NeedsApproval(ctx, Filter{}, "sydney")
	if err != nil {
		t.Fatalf("needs approval: %v", err)
	}
	if len(forSydney) != 1 || forSydney[0].Unit.Key.Implementation != "VolScaledImpl" {
		t.Errorf("sydney's queue = %+v, want only VolScaledImpl", forSydney)
	}

	forJoey, err := m.NeedsApproval(ctx, Filter{}, "joey")
	if err != nil {
		t.Fatalf("needs approval: %v", err)
	}
	if len(forJoey) != 2 {
		t.Errorf("joey's queue has %d units, want 2", len(forJoey))
	}
}

func TestNeedsApprovalSkipsCompleteAndBacktest(t *testing.T) {
	store := newMemStore(
		testUnit("FXCarry", "StandardImpl"),
		testUnit("FXCarry", "VolScaledImpl"),
	)
	m := newTestMachine(t, store)
	ctx := context.Background()

	mustApproveAll(t, m, Target{Experiment: "FXCarry", Implementation: "StandardImpl"})
	if _, err := m.Approve(ctx, Target{Experiment: "FXCarry", Implementation: "VolScaledImpl"}, StageConfigReview, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	queue, err := m.NeedsApproval(ctx, Filter{}, "")
	if err != nil {
		t.Fatalf("needs approval: %v", err)
	}
	if len(queue) != 0 {
		t.Errorf("queue = %+v, want empty", queue)
	}
}

func TestProgress(t *testing.T) {
	store := newMemStore(
		testUnit("FXCarry", "StandardImpl"),
		testUnit("FXCarry", "VolScaledImpl"),
		testUnit("EquityMomentum", "StandardImpl"),
	)
	m := newTestMachine(t, store)
	ctx := context.Background()

	mustApproveAll(t, m, Target{Experiment: "FXCarry", Implementation: "StandardImpl"})

	progress, err := m.Progress(ctx, Filter{})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(progress) != 2 {
		t.Fatalf("experiments = %d, want 2", len(progress))
	}
	if progress[0].Experiment != "EquityMomentum" || progress[1].Experiment != "FXCarry" {
		t.Errorf("order = %s, %s", progress[0].Experiment, progress[1].Experiment)
	}

	fx := progress[1]
	if fx.Total != 2 || fx.Complete != 1 {
		t.Errorf("FXCarry totals = (%d, %d), want (2, 1)", fx.Total, fx.Complete)
	}
	if fx.Done() {
		t.Error("FXCarry reported done with one unit pending")
	}
	if fx.ByStatus[StatusComplete] != 1 || fx.ByStatus[StatusConfigReviewNeeded] != 1 {
		t.Errorf("FXCarry by status = %v", fx.ByStatus)
	}
}

func TestStatusDerivationIsRecomputedPerRead(t *testing.T) {
	store := newMemStore(testUnit("FXCarry", "StandardImpl"))
	m := newTestMachine(t, store)
	ctx := context.Background()
	target := Target{Experiment: "FXCarry", Implementation: "StandardImpl"}

	mustApproveAll(t, m, target)

	// A flag flip from another session shows up on the next summary.
	if err := store.SetBacktestComplete(ctx, target.Key(), false); err != nil {
		t.Fatalf("flip: %v", err)
	}
	u, _ := store.GetUnit(ctx, target.Key())
	// Final review is still satisfied, so the most advanced stage wins.
	if got := m.Status(u); got != StatusComplete {
		t.Errorf("status = %s, want %s", got, StatusComplete)
	}

	if _, err := m.Revoke(ctx, target, StageFinalReview, ""); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	u, _ = store.GetUnit(ctx, target.Key())
	if got := m.Status(u); got != StatusFinalReviewNeeded {
		t.Errorf("status = %s, want %s", got, StatusFinalReviewNeeded)
	}
}
