package commands

import (
	"context"
	"fmt"

	"github.com/babybob/babybob/pkg/config"
	"github.com/babybob/babybob/pkg/review"
	"github.com/babybob/babybob/pkg/service"
	"github.com/babybob/babybob/pkg/stores"
	"github.com/babybob/babybob/pkg/telemetry"
)

// app bundles everything a command needs after setup.
type app struct {
	cfg   config.Config
	tel   *telemetry.Telemetry
	store *stores.SQLiteStore
	svc   *service.Service
}

// loadConfig resolves the effective configuration: file (when given),
// environment overrides, then validation.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildTelemetry maps the application config onto the telemetry stack.
func buildTelemetry(cfg config.Config) (*telemetry.Telemetry, error) {
	tcfg := telemetry.DefaultConfig()
	tcfg.Logging.Level = cfg.Telemetry.LogLevel
	tcfg.Logging.Format = cfg.Telemetry.LogFormat
	tcfg.Logging.Output = "stderr"
	tcfg.Logging.EnableCaller = false

	tcfg.Tracing.Enabled = cfg.Telemetry.Tracing.Enabled
	if cfg.Telemetry.Tracing.Exporter != "" {
		tcfg.Tracing.Exporter = cfg.Telemetry.Tracing.Exporter
	}
	tcfg.Tracing.Endpoint = cfg.Telemetry.Tracing.Endpoint

	tcfg.Metrics.Enabled = cfg.Telemetry.MetricsAddr != ""
	tcfg.Metrics.ListenAddress = cfg.Telemetry.MetricsAddr

	// CLI invocations are short-lived; deliver events synchronously.
	tcfg.Events.EnableAsync = false

	return telemetry.NewTelemetry(tcfg)
}

// openApp loads configuration and opens the store. The database must
// already exist and be migrated (see `bob init`).
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := buildTelemetry(cfg)
	if err != nil {
		return nil, err
	}

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	policy, err := cfg.Review.Policy()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	svc, err := service.New(store, policy, tel)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if err := tel.StartMetricsServer(); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{cfg: cfg, tel: tel, store: store, svc: svc}, nil
}

// close releases the app's resources.
func (a *app) close(ctx context.Context) {
	_ = a.tel.Shutdown(ctx)
	_ = a.store.Close()
}

// parseTarget turns positional args into a workflow target: an experiment,
// optionally narrowed to one implementation.
func parseTarget(args []string) (review.Target, error) {
	switch len(args) {
	case 1:
		return review.Target{Experiment: args[0]}, nil
	case 2:
		return review.Target{Experiment: args[0], Implementation: args[1]}, nil
	default:
		return review.Target{}, fmt.Errorf("expected <experiment> [implementation], got %d args", len(args))
	}
}

// reportBatch prints the per-unit outcomes of a batch action.
func reportBatch(result *review.BatchResult, err error) error {
	if result != nil {
		for _, o := range result.Outcomes {
			if o.OK() {
				fmt.Printf("  %s: ok\n", o.Key)
			} else {
				fmt.Printf("  %s: %v\n", o.Key, o.Err)
			}
		}
	}
	return err
}
