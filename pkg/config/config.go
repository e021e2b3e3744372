package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/babybob/babybob/pkg/review"
)

// Config is the application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" validate:"required"`
	Review    ReviewConfig    `yaml:"review" validate:"required"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the database file path.
	Path string `yaml:"path" validate:"required"`

	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ReviewConfig configures the approval workflow.
type ReviewConfig struct {
	// Reviewers is the default reviewer set applied to every approval
	// stage. A single entry runs the workflow in single-flag mode.
	Reviewers []string `yaml:"reviewers" validate:"min=1,dive,required"`

	// StageReviewers optionally overrides the reviewer set for individual
	// stages, keyed by stage token (config_review, comparison_review,
	// final_review).
	StageReviewers map[string][]string `yaml:"stage_reviewers" validate:"omitempty,dive,min=1"`

	// CascadeRevocation clears downstream approvals when an earlier stage
	// is revoked. Off by default: later approvals stand on their own.
	CascadeRevocation bool `yaml:"cascade_revocation"`
}

// TelemetryConfig configures logging, metrics, and tracing.
type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`

	// MetricsAddr is the Prometheus listen address. Empty disables the
	// metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures the trace exporter.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path:            "review.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Review: ReviewConfig{
			Reviewers: []string{"sydney", "joey"},
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "console",
			Tracing: TracingConfig{
				Exporter: "stdout",
			},
		},
	}
}

// LoadFile reads a YAML config file over the defaults. A missing file is
// an error; call Default directly when no file is expected.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BOB_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BOB_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("BOB_REVIEWERS"); v != "" {
		var reviewers []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				reviewers = append(reviewers, r)
			}
		}
		if len(reviewers) > 0 {
			c.Review.Reviewers = reviewers
		}
	}
	if v := os.Getenv("BOB_LOG_LEVEL"); v != "" {
		c.Telemetry.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("BOB_METRICS_ADDR"); v != "" {
		c.Telemetry.MetricsAddr = v
	}
}

// Validate checks the configuration, including that every stage-reviewer
// override names a real approval stage.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for token := range c.Review.StageReviewers {
		stage, err := review.ParseStage(token)
		if err != nil {
			return fmt.Errorf("stage_reviewers: %w", err)
		}
		if !stage.IsApproval() {
			return fmt.Errorf("stage_reviewers: stage %s does not take approvals", stage)
		}
	}
	return nil
}

// ReviewerSets resolves the configured reviewer sets for the state
// machine: the default set for every approval stage, with per-stage
// overrides applied on top.
func (c *ReviewConfig) ReviewerSets() (review.ReviewerSets, error) {
	sets := review.UniformReviewers(c.Reviewers...)
	for token, reviewers := range c.StageReviewers {
		stage, err := review.ParseStage(token)
		if err != nil {
			return nil, err
		}
		sets[stage] = append([]string(nil), reviewers...)
	}
	if err := sets.Validate(); err != nil {
		return nil, err
	}
	return sets, nil
}

// Policy builds the state machine policy from the review configuration.
func (c *ReviewConfig) Policy() (review.Policy, error) {
	sets, err := c.ReviewerSets()
	if err != nil {
		return review.Policy{}, err
	}
	return review.Policy{
		Reviewers:         sets,
		CascadeRevocation: c.CascadeRevocation,
	}, nil
}
