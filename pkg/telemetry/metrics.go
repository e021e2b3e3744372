package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the review workflow.
type Metrics struct {
	config MetricsConfig

	// Approval metrics
	approvalsGranted *prometheus.CounterVec
	approvalsRevoked *prometheus.CounterVec
	actionsRejected  *prometheus.CounterVec

	// Backtest metrics
	backtestsCompleted prometheus.Counter

	// Dashboard metrics
	unitsByStatus    *prometheus.GaugeVec
	comparisonsBuilt *prometheus.CounterVec

	// Store metrics
	storeOpDuration *prometheus.HistogramVec

	// Error metrics
	errorsByKind *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		approvalsGranted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approvals_granted_total",
				Help:      "Total number of approval flags set",
			},
			[]string{"stage", "reviewer"},
		),
		approvalsRevoked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approvals_revoked_total",
				Help:      "Total number of approval flags cleared",
			},
			[]string{"stage", "reviewer"},
		),
		actionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_rejected_total",
				Help:      "Total number of workflow actions rejected before any write",
			},
			[]string{"action", "kind"},
		),

		backtestsCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtests_completed_total",
				Help:      "Total number of backtest completion flips",
			},
		),

		unitsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "units_by_status",
				Help:      "Current number of config units per derived status",
			},
			[]string{"status"},
		),
		comparisonsBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "comparisons_built_total",
				Help:      "Total number of comparison tables built",
			},
			[]string{"level"},
		),

		storeOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of store operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of workflow errors by kind",
			},
			[]string{"kind"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.approvalsGranted,
		m.approvalsRevoked,
		m.actionsRejected,
		m.backtestsCompleted,
		m.unitsByStatus,
		m.comparisonsBuilt,
		m.storeOpDuration,
		m.errorsByKind,
	)

	return m, nil
}

// Approval Metrics

// RecordApprovalGranted increments the counter for set approval flags.
func (m *Metrics) RecordApprovalGranted(stage, reviewer string) {
	if m.approvalsGranted == nil {
		return
	}
	m.approvalsGranted.WithLabelValues(stage, reviewer).Inc()
}

// RecordApprovalRevoked increments the counter for cleared approval flags.
func (m *Metrics) RecordApprovalRevoked(stage, reviewer string) {
	if m.approvalsRevoked == nil {
		return
	}
	m.approvalsRevoked.WithLabelValues(stage, reviewer).Inc()
}

// RecordActionRejected records a workflow action rejected by a gate or
// validation check.
func (m *Metrics) RecordActionRejected(action, kind string) {
	if m.actionsRejected == nil {
		return
	}
	m.actionsRejected.WithLabelValues(action, kind).Inc()
}

// Backtest Metrics

// RecordBacktestCompleted increments the backtest completion counter.
func (m *Metrics) RecordBacktestCompleted() {
	if m.backtestsCompleted == nil {
		return
	}
	m.backtestsCompleted.Inc()
}

// Dashboard Metrics

// SetUnitsByStatus sets the current unit count for a derived status.
func (m *Metrics) SetUnitsByStatus(status string, count float64) {
	if m.unitsByStatus == nil {
		return
	}
	m.unitsByStatus.WithLabelValues(status).Set(count)
}

// RecordComparisonBuilt records a built comparison table. Level is "top"
// or "nested".
func (m *Metrics) RecordComparisonBuilt(level string) {
	if m.comparisonsBuilt == nil {
		return
	}
	m.comparisonsBuilt.WithLabelValues(level).Inc()
}

// Store Metrics

// RecordStoreOperation records the duration of a store operation.
func (m *Metrics) RecordStoreOperation(operation string, duration time.Duration) {
	if m.storeOpDuration == nil {
		return
	}
	m.storeOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Error Metrics

// RecordError records a workflow error by kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
