package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/babybob/babybob/pkg/telemetry"
)

// ExampleNewTelemetry demonstrates basic telemetry setup.
func ExampleNewTelemetry() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "babybob"
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	fmt.Println("telemetry initialized")
	// Output: telemetry initialized
}

// ExampleLogger_WithUnit demonstrates unit-scoped logging.
func ExampleLogger_WithUnit() {
	cfg := telemetry.DefaultConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return
	}
	defer tel.Shutdown(context.Background())

	logger := tel.Logger.
		WithUnit("exp_smallcap", "momentum_v2").
		WithStage("config_review").
		WithReviewer("sydney")
	_ = logger

	fmt.Println("logger ready")
	// Output: logger ready
}

// ExampleMetrics demonstrates recording workflow metrics.
func ExampleMetrics() {
	cfg := telemetry.DefaultConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Events.Enabled = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return
	}
	defer tel.Shutdown(context.Background())

	tel.Metrics.RecordApprovalGranted("config_review", "sydney")
	tel.Metrics.RecordApprovalRevoked("final_review", "joey")
	tel.Metrics.RecordActionRejected("run_backtest", "precondition_not_met")
	tel.Metrics.RecordBacktestCompleted()
	tel.Metrics.SetUnitsByStatus("complete", 3)
	tel.Metrics.RecordComparisonBuilt("top")
	tel.Metrics.RecordStoreOperation("get_unit", 2*time.Millisecond)
	tel.Metrics.RecordError("not_found")

	fmt.Println("metrics recorded")
	// Output: metrics recorded
}

// ExampleEventPublisher demonstrates subscribing to workflow events.
func ExampleEventPublisher() {
	cfg := telemetry.DefaultConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false
	cfg.Events.EnableAsync = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return
	}
	defer tel.Shutdown(context.Background())

	done := make(chan struct{})
	tel.Events.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type)
		close(done)
	}, telemetry.FilterByType(telemetry.EventTypeApprovalGranted))

	tel.Events.PublishApprovalGranted("exp_smallcap", "momentum_v2", "config_review", "sydney")
	<-done
	// Output: approval.granted
}

// ExampleWithActionContext demonstrates bracketing a workflow action.
func ExampleWithActionContext() {
	cfg := telemetry.DefaultConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	ctx = telemetry.WithActionContext(ctx, "approve", "exp_smallcap", "momentum_v2")

	opErr := telemetry.RecordStoreOperation(ctx, "set_approval", func(ctx context.Context) error {
		return nil
	})
	telemetry.EndActionContext(ctx, opErr)

	if opErr == nil {
		fmt.Println("action completed")
	}
	// Output: action completed
}
