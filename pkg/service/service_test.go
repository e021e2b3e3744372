package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/babybob/babybob/pkg/compare"
	"github.com/babybob/babybob/pkg/review"
	"github.com/babybob/babybob/pkg/stores"
	"github.com/babybob/babybob/pkg/telemetry"
)

// newTestService builds a service over a throwaway database with quiet
// telemetry.
func newTestService(t *testing.T) *Service {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tel := newTestTelemetry(t)

	svc, err := New(store, review.Policy{
		Reviewers: review.UniformReviewers("sydney", "joey"),
	}, tel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func newTestTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()

	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false
	cfg.Events.EnableAsync = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	return tel
}

func testUnit(experiment, implementation string) review.ConfigUnit {
	return review.ConfigUnit{
		Key:      review.UnitKey{Experiment: experiment, Implementation: implementation},
		Universe: "GLOBAL",
		Frontier: "frontier_1",
		FrontierParams: []review.FrontierParam{
			{Key: "risk_weight", Value: 0.5},
			{Key: "lookback", Value: 120},
		},
		BacktestName: "bt_" + experiment,
		BacktestUser: "sydney",
	}
}

func TestApproveThroughPipeline(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	unit := testUnit("FXCarry", "StandardImpl")
	if err := svc.InsertUnit(ctx, unit, "sydney"); err != nil {
		t.Fatalf("InsertUnit: %v", err)
	}

	target := review.Target{Experiment: "FXCarry", Implementation: "StandardImpl"}

	if _, err := svc.Approve(ctx, target, review.StageConfigReview, ""); err != nil {
		t.Fatalf("approve config review: %v", err)
	}
	if _, err := svc.RunBacktest(ctx, target, "sydney"); err != nil {
		t.Fatalf("run backtest: %v", err)
	}
	if _, err := svc.Approve(ctx, target, review.StageComparisonReview, ""); err != nil {
		t.Fatalf("approve comparison review: %v", err)
	}
	if _, err := svc.Approve(ctx, target, review.StageFinalReview, ""); err != nil {
		t.Fatalf("approve final review: %v", err)
	}

	summaries, err := svc.SummarizeAll(ctx, review.Filter{})
	if err != nil {
		t.Fatalf("SummarizeAll: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if summaries[0].Status != review.StatusComplete {
		t.Errorf("status = %s, want complete", summaries[0].Status)
	}
}

func TestApproveOutOfOrderRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.InsertUnit(ctx, testUnit("FXCarry", "StandardImpl"), "sydney"); err != nil {
		t.Fatalf("InsertUnit: %v", err)
	}

	target := review.Target{Experiment: "FXCarry", Implementation: "StandardImpl"}
	_, err := svc.Approve(ctx, target, review.StageFinalReview, "sydney")
	if !review.IsPreconditionNotMet(err) {
		t.Fatalf("err = %v, want precondition not met", err)
	}
}

func TestWorkflowWritesAppendAudit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.InsertUnit(ctx, testUnit("FXCarry", "StandardImpl"), "sydney"); err != nil {
		t.Fatalf("InsertUnit: %v", err)
	}
	target := review.Target{Experiment: "FXCarry", Implementation: "StandardImpl"}
	if _, err := svc.Approve(ctx, target, review.StageConfigReview, "sydney"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := svc.Revoke(ctx, target, review.StageConfigReview, "sydney"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	entries, err := svc.Audit(ctx, stores.AuditFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	// Newest first: revoke, approve, insert.
	if len(entries) != 3 {
		t.Fatalf("got %d audit entries, want 3", len(entries))
	}
	wantActions := []stores.AuditAction{
		stores.AuditActionRevoke,
		stores.AuditActionApprove,
		stores.AuditActionInsertUnit,
	}
	for i, want := range wantActions {
		if entries[i].Action != want {
			t.Errorf("entries[%d].Action = %s, want %s", i, entries[i].Action, want)
		}
	}
	if entries[0].Stage != string(review.StageConfigReview) {
		t.Errorf("revoke stage = %q", entries[0].Stage)
	}
	for i, e := range entries {
		if e.Timestamp.IsZero() {
			t.Errorf("entries[%d].Timestamp is zero", i)
		}
		if age := time.Since(e.Timestamp); age < 0 || age > time.Minute {
			t.Errorf("entries[%d].Timestamp = %v, not recent", i, e.Timestamp)
		}
	}
}

func TestBatchApproveByExperiment(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, impl := range []string{"ImplA", "ImplB"} {
		if err := svc.InsertUnit(ctx, testUnit("FXCarry", impl), "sydney"); err != nil {
			t.Fatalf("InsertUnit %s: %v", impl, err)
		}
	}

	result, err := svc.Approve(ctx, review.Target{Experiment: "FXCarry"}, review.StageConfigReview, "")
	if err != nil {
		t.Fatalf("batch approve: %v", err)
	}
	if got := len(result.Applied()); got != 2 {
		t.Errorf("applied %d units, want 2", got)
	}
}

func TestNeedsApproval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.InsertUnit(ctx, testUnit("FXCarry", "StandardImpl"), "sydney"); err != nil {
		t.Fatalf("InsertUnit: %v", err)
	}
	target := review.Target{Experiment: "FXCarry", Implementation: "StandardImpl"}
	if _, err := svc.Approve(ctx, target, review.StageConfigReview, "sydney"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	pending, err := svc.NeedsApproval(ctx, review.Filter{}, "joey")
	if err != nil {
		t.Fatalf("NeedsApproval: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending units, want 1", len(pending))
	}
	if pending[0].Status != review.StatusConfigReviewNeeded {
		t.Errorf("status = %s", pending[0].Status)
	}
}

func TestConfigForUnit(t *testing.T) {
	unit := testUnit("FXCarry", "StandardImpl")
	cfg := ConfigForUnit(&unit)

	if v, ok := cfg.Get("universe"); !ok || v.Canonical() != "GLOBAL" {
		t.Errorf("universe = %v", v)
	}
	v, ok := cfg.Get("frontier_params")
	if !ok || !v.IsNested() {
		t.Fatalf("frontier_params not nested: %v", v)
	}
	nested := v.NestedConfig()
	if got, want := nested.Keys(), []string{"risk_weight", "lookback"}; len(got) != len(want) {
		t.Fatalf("nested keys = %v", got)
	}
	if p, _ := nested.Get("lookback"); p.Canonical() != "120" {
		t.Errorf("lookback = %s", p.Canonical())
	}
}

func TestCompareExperiment(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := testUnit("FXCarry", "ImplA")
	b := testUnit("FXCarry", "ImplB")
	b.Universe = "US_ONLY"
	for _, u := range []review.ConfigUnit{a, b} {
		if err := svc.InsertUnit(ctx, u, "sydney"); err != nil {
			t.Fatalf("InsertUnit: %v", err)
		}
	}

	table, err := svc.CompareExperiment(ctx, "FXCarry")
	if err != nil {
		t.Fatalf("CompareExperiment: %v", err)
	}
	diffs := table.DifferingKeys()
	if len(diffs) != 1 || diffs[0] != "universe" {
		t.Errorf("differing keys = %v", diffs)
	}
}

func TestCompareExperimentUnknown(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.CompareExperiment(context.Background(), "absent"); !review.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestLoadExperimentConfigsReplacesSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, impl := range []string{"ImplA", "ImplB"} {
		if err := svc.InsertUnit(ctx, testUnit("FXCarry", impl), "sydney"); err != nil {
			t.Fatalf("InsertUnit: %v", err)
		}
	}

	session := compare.NewSession()
	session.Load("stale", compare.NewConfig().Set("k", compare.String("v")))

	ids, err := svc.LoadExperimentConfigs(ctx, session, "FXCarry")
	if err != nil {
		t.Fatalf("LoadExperimentConfigs: %v", err)
	}
	if len(ids) != 2 || session.Len() != 2 {
		t.Fatalf("ids = %v, session len = %d", ids, session.Len())
	}
}

func TestExperiments(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, exp := range []string{"RatesMomentum", "FXCarry"} {
		if err := svc.InsertUnit(ctx, testUnit(exp, "StandardImpl"), "sydney"); err != nil {
			t.Fatalf("InsertUnit: %v", err)
		}
	}

	names, err := svc.Experiments(ctx)
	if err != nil {
		t.Fatalf("Experiments: %v", err)
	}
	if len(names) != 2 || names[0] != "FXCarry" || names[1] != "RatesMomentum" {
		t.Errorf("names = %v", names)
	}
}

func TestWatchStoreFiresOnChange(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- svc.WatchStore(ctx, 50*time.Millisecond, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to install before touching the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(svc.Store().Path()+"-wal", []byte("x"), 0o644); err != nil {
		t.Fatalf("touch wal: %v", err)
	}

	select {
	case <-changed:
	case <-ctx.Done():
		t.Fatal("watcher did not fire")
	}

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("WatchStore returned %v", err)
	}
}
