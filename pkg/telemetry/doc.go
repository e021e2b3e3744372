// Package telemetry provides observability instrumentation for the review
// workflow: structured logging, distributed tracing, Prometheus metrics,
// and an event publishing system.
//
// # Quick Start
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "babybob"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx := tel.WithContext(context.Background())
//
// # Logging
//
// The Logger wraps zerolog with field helpers for the review domain:
//
//	logger := tel.Logger.WithUnit("exp_smallcap", "momentum_v2").WithStage("config_review")
//	logger.Info("approval recorded")
//
// Component loggers carry a fixed component field:
//
//	storeLog := tel.Logger.NewComponentLogger("store")
//
// # Tracing
//
// Spans follow workflow actions, store operations, and comparison builds:
//
//	ctx, span := tel.Tracer.StartActionSpan(ctx, "approve", experiment, implementation)
//	defer span.End()
//
// # Metrics
//
// Exposed under the configured namespace (default "babybob"):
//
//   - babybob_approvals_granted_total{stage,reviewer}
//   - babybob_approvals_revoked_total{stage,reviewer}
//   - babybob_actions_rejected_total{action,kind}
//   - babybob_backtests_completed_total
//   - babybob_units_by_status{status}
//   - babybob_comparisons_built_total{level}
//   - babybob_store_operation_duration_seconds{operation}
//   - babybob_errors_by_kind_total{kind}
//
// # Events
//
// The EventPublisher delivers workflow events to subscribers, optionally
// buffered and batched:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByType(telemetry.EventTypeApprovalGranted))
//
// Event filters: FilterByLevel, FilterByType, FilterByExperiment, FilterByStage.
//
// # Context Helpers
//
// WithActionContext and EndActionContext bracket a workflow action with a
// span and a unit-scoped logger; RecordStoreOperation wraps a store call
// with tracing and duration metrics:
//
//	ctx = telemetry.WithActionContext(ctx, "approve", experiment, implementation)
//	defer func() { telemetry.EndActionContext(ctx, err) }()
//
//	err := telemetry.RecordStoreOperation(ctx, "set_approval", func(ctx context.Context) error {
//	    return store.SetApproval(ctx, key, stage, reviewer, true)
//	})
package telemetry
