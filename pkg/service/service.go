package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/babybob/babybob/pkg/compare"
	"github.com/babybob/babybob/pkg/review"
	"github.com/babybob/babybob/pkg/stores"
	"github.com/babybob/babybob/pkg/telemetry"
)

// Service is the facade presentation layers talk to. It wires the store,
// the approval state machine, and telemetry, and appends an audit row for
// every workflow write.
type Service struct {
	store   *stores.SQLiteStore
	machine *review.Machine
	tel     *telemetry.Telemetry
	log     *telemetry.Logger
}

// New builds a service over an initialized store.
func New(store *stores.SQLiteStore, policy review.Policy, tel *telemetry.Telemetry) (*Service, error) {
	machine, err := review.NewMachine(store, policy)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:   store,
		machine: machine,
		tel:     tel,
		log:     tel.Logger.NewComponentLogger("service"),
	}, nil
}

// withTelemetry ensures the context carries the service's telemetry so the
// span and metrics helpers downstream find it.
func (s *Service) withTelemetry(ctx context.Context) context.Context {
	if telemetry.FromTelemetryContext(ctx) == nil {
		ctx = s.tel.WithContext(ctx)
	}
	return ctx
}

// Machine exposes the underlying state machine for read-only derivations.
func (s *Service) Machine() *review.Machine {
	return s.machine
}

// Store exposes the underlying store.
func (s *Service) Store() *stores.SQLiteStore {
	return s.store
}

// LoadUnits returns the units matching the filter with their current flags.
func (s *Service) LoadUnits(ctx context.Context, filter review.Filter) ([]review.ConfigUnit, error) {
	ctx = s.withTelemetry(ctx)
	var units []review.ConfigUnit
	err := telemetry.RecordStoreOperation(ctx, "query_units", func(ctx context.Context) error {
		var err error
		units, err = s.store.QueryUnits(ctx, filter)
		return err
	})
	return units, err
}

// GetUnit returns one unit by key.
func (s *Service) GetUnit(ctx context.Context, key review.UnitKey) (*review.ConfigUnit, error) {
	ctx = s.withTelemetry(ctx)
	var unit *review.ConfigUnit
	err := telemetry.RecordStoreOperation(ctx, "get_unit", func(ctx context.Context) error {
		var err error
		unit, err = s.store.GetUnit(ctx, key)
		return err
	})
	return unit, err
}

// InsertUnit registers a new unit for review.
func (s *Service) InsertUnit(ctx context.Context, u review.ConfigUnit, actor string) error {
	ctx = s.withTelemetry(ctx)
	err := telemetry.RecordStoreOperation(ctx, "insert_unit", func(ctx context.Context) error {
		return s.store.InsertUnit(ctx, u)
	})
	if err != nil {
		s.recordError(err)
		return err
	}
	s.appendAudit(ctx, stores.AuditEntry{
		Action:         stores.AuditActionInsertUnit,
		Actor:          actor,
		Experiment:     u.Key.Experiment,
		Implementation: u.Key.Implementation,
	})
	_ = s.tel.Events.PublishUnitInserted(u.Key.Experiment, u.Key.Implementation)
	s.log.WithUnit(u.Key.Experiment, u.Key.Implementation).Info("unit inserted")
	return nil
}

// Approve sets approval flags for the targeted unit or experiment batch.
// An empty reviewer applies every configured reviewer for the stage.
func (s *Service) Approve(ctx context.Context, target review.Target, stage review.Stage, reviewer string) (*review.BatchResult, error) {
	ctx = telemetry.WithActionContext(s.withTelemetry(ctx), "approve", target.Experiment, target.Implementation)
	result, err := s.machine.Approve(ctx, target, stage, reviewer)
	telemetry.EndActionContext(ctx, err)
	s.recordBatch(ctx, result, err, stage, reviewer, stores.AuditActionApprove)
	return result, err
}

// Revoke clears approval flags for the targeted unit or experiment batch.
func (s *Service) Revoke(ctx context.Context, target review.Target, stage review.Stage, reviewer string) (*review.BatchResult, error) {
	ctx = telemetry.WithActionContext(s.withTelemetry(ctx), "revoke", target.Experiment, target.Implementation)
	result, err := s.machine.Revoke(ctx, target, stage, reviewer)
	telemetry.EndActionContext(ctx, err)
	s.recordBatch(ctx, result, err, stage, reviewer, stores.AuditActionRevoke)
	return result, err
}

// RunBacktest marks the targeted units' backtests complete.
func (s *Service) RunBacktest(ctx context.Context, target review.Target, actor string) (*review.BatchResult, error) {
	ctx = telemetry.WithActionContext(s.withTelemetry(ctx), "run_backtest", target.Experiment, target.Implementation)
	result, err := s.machine.RunBacktest(ctx, target)
	telemetry.EndActionContext(ctx, err)
	if err != nil {
		s.recordRejection("run_backtest", err)
	}
	if result != nil {
		for _, o := range result.Outcomes {
			if !o.OK() {
				continue
			}
			s.tel.Metrics.RecordBacktestCompleted()
			s.appendAudit(ctx, stores.AuditEntry{
				Action:         stores.AuditActionRunBacktest,
				Actor:          actor,
				Experiment:     o.Key.Experiment,
				Implementation: o.Key.Implementation,
			})
			_ = s.tel.Events.PublishBacktestCompleted(o.Key.Experiment, o.Key.Implementation)
		}
	}
	return result, err
}

// SummarizeAll returns summaries for the matching units and refreshes the
// units-by-status gauge.
func (s *Service) SummarizeAll(ctx context.Context, filter review.Filter) ([]review.UnitSummary, error) {
	summaries, err := s.machine.SummarizeAll(ctx, filter)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	counts := make(map[review.Status]int)
	for _, sum := range summaries {
		counts[sum.Status]++
	}
	for _, status := range review.Statuses() {
		s.tel.Metrics.SetUnitsByStatus(string(status), float64(counts[status]))
	}
	return summaries, nil
}

// NeedsApproval lists units whose next step is an approval the given
// reviewer (or any reviewer, when empty) still owes.
func (s *Service) NeedsApproval(ctx context.Context, filter review.Filter, reviewer string) ([]review.UnitSummary, error) {
	return s.machine.NeedsApproval(ctx, filter, reviewer)
}

// Progress reports per-experiment completion fractions.
func (s *Service) Progress(ctx context.Context, filter review.Filter) ([]review.ExperimentProgress, error) {
	return s.machine.Progress(ctx, filter)
}

// Audit lists audit entries, newest first.
func (s *Service) Audit(ctx context.Context, filter stores.AuditFilter, limit, offset int) ([]*stores.AuditEntry, error) {
	return s.store.ListAudit(ctx, filter, limit, offset)
}

// ConfigForUnit builds the comparison config for a unit: its descriptive
// attributes at the top level and the frontier parameters as a nested
// config, so frontiers only differ on drill-down.
func ConfigForUnit(u *review.ConfigUnit) *compare.Config {
	cfg := compare.NewConfig().
		Set("universe", compare.String(u.Universe)).
		Set("frontier", compare.String(u.Frontier)).
		Set("backtest_name", compare.String(u.BacktestName)).
		Set("backtest_user", compare.String(u.BacktestUser))
	if len(u.FrontierParams) > 0 {
		params := compare.NewConfig()
		for _, p := range u.FrontierParams {
			params.Set(p.Key, compare.Number(p.Value))
		}
		cfg.Set("frontier_params", compare.Nested(params))
	}
	return cfg
}

// LoadExperimentConfigs replaces the session contents with one config per
// implementation of the experiment, named by implementation. Returns the
// assigned session ids in implementation order.
func (s *Service) LoadExperimentConfigs(ctx context.Context, session *compare.Session, experiment string) ([]string, error) {
	units, err := s.LoadUnits(ctx, review.Filter{Experiment: experiment})
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, review.NewNotFoundError(review.UnitKey{Experiment: experiment})
	}
	session.Clear()
	ids := make([]string, 0, len(units))
	for i := range units {
		u := &units[i]
		ids = append(ids, session.Load(u.Key.Implementation, ConfigForUnit(u)))
	}
	return ids, nil
}

// CompareExperiment builds a comparison table over all implementations of
// an experiment.
func (s *Service) CompareExperiment(ctx context.Context, experiment string, opts ...compare.Option) (*compare.Table, error) {
	units, err := s.LoadUnits(ctx, review.Filter{Experiment: experiment})
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, review.NewNotFoundError(review.UnitKey{Experiment: experiment})
	}
	configs := make([]compare.Named, 0, len(units))
	for i := range units {
		u := &units[i]
		configs = append(configs, compare.Named{
			Name:   u.Key.Implementation,
			Config: ConfigForUnit(u),
		})
	}
	table := compare.Build(configs, opts...)
	s.tel.Metrics.RecordComparisonBuilt("top")
	_ = s.tel.Events.PublishComparisonBuilt(len(configs), len(table.DifferingKeys()))
	return table, nil
}

// Experiments returns the distinct experiment names in the store, sorted.
func (s *Service) Experiments(ctx context.Context) ([]string, error) {
	units, err := s.LoadUnits(ctx, review.Filter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for i := range units {
		if exp := units[i].Key.Experiment; !seen[exp] {
			seen[exp] = true
			names = append(names, exp)
		}
	}
	sort.Strings(names)
	return names, nil
}

// recordBatch records metrics, audit rows, and events for an approval
// batch. Approve and Revoke share the shape; only the verbs differ.
func (s *Service) recordBatch(ctx context.Context, result *review.BatchResult, err error, stage review.Stage, reviewer string, action stores.AuditAction) {
	if err != nil {
		s.recordRejection(string(action), err)
	}
	if result == nil {
		return
	}
	for _, o := range result.Outcomes {
		if !o.OK() {
			continue
		}
		if action == stores.AuditActionApprove {
			s.tel.Metrics.RecordApprovalGranted(string(stage), reviewer)
			_ = s.tel.Events.PublishApprovalGranted(o.Key.Experiment, o.Key.Implementation, string(stage), reviewer)
		} else {
			s.tel.Metrics.RecordApprovalRevoked(string(stage), reviewer)
			_ = s.tel.Events.PublishApprovalRevoked(o.Key.Experiment, o.Key.Implementation, string(stage), reviewer)
		}
		s.appendAudit(ctx, stores.AuditEntry{
			Action:         action,
			Actor:          reviewer,
			Experiment:     o.Key.Experiment,
			Implementation: o.Key.Implementation,
			Stage:          string(stage),
		})
	}
}

// recordRejection classifies a failed action into metrics and events.
func (s *Service) recordRejection(action string, err error) {
	kind := errorKind(err)
	s.tel.Metrics.RecordActionRejected(action, kind)
	s.recordError(err)
	s.log.WithError(err).WithField("action", action).Warn("action failed")
}

func (s *Service) recordError(err error) {
	s.tel.Metrics.RecordError(errorKind(err))
}

// appendAudit writes an audit row. Audit failures are logged, never
// propagated: the workflow write already succeeded.
func (s *Service) appendAudit(ctx context.Context, entry stores.AuditEntry) {
	if err := s.store.AppendAudit(ctx, &entry); err != nil {
		s.log.WithError(err).Error(fmt.Sprintf("audit append failed for %s", entry.Action))
	}
}

func errorKind(err error) string {
	switch {
	case review.IsNotFound(err):
		return "not_found"
	case review.IsPreconditionNotMet(err):
		return "precondition_not_met"
	case review.IsInvalidStage(err):
		return "invalid_stage"
	case review.IsInvalidReviewer(err):
		return "invalid_reviewer"
	case review.IsMalformedConfig(err):
		return "malformed_config"
	case review.IsPartialBatchFailure(err):
		return "partial_batch_failure"
	case review.IsStoreUnavailable(err):
		return "store_unavailable"
	default:
		return "internal"
	}
}
