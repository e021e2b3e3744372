package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/babybob/babybob/pkg/review"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bob.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !reflect.DeepEqual(cfg.Review.Reviewers, []string{"sydney", "joey"}) {
		t.Errorf("default reviewers = %v", cfg.Review.Reviewers)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  path: /var/lib/bob/review.db
review:
  reviewers: [alice]
  cascade_revocation: true
telemetry:
  log_level: debug
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database.Path != "/var/lib/bob/review.db" {
		t.Errorf("path = %s", cfg.Database.Path)
	}
	if !reflect.DeepEqual(cfg.Review.Reviewers, []string{"alice"}) {
		t.Errorf("reviewers = %v", cfg.Review.Reviewers)
	}
	if !cfg.Review.CascadeRevocation {
		t.Error("cascade_revocation not set")
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("log_level = %s", cfg.Telemetry.LogLevel)
	}
	// Untouched defaults survive.
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("max_open_conns = %d", cfg.Database.MaxOpenConns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsEmptyReviewers(t *testing.T) {
	cfg := Default()
	cfg.Review.Reviewers = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty reviewers")
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidateRejectsUnknownStageOverride(t *testing.T) {
	cfg := Default()
	cfg.Review.StageReviewers = map[string][]string{"deploy": {"alice"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown stage token")
	}

	cfg.Review.StageReviewers = map[string][]string{"backtest": {"alice"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-approval stage")
	}
}

func TestReviewerSetsWithOverride(t *testing.T) {
	rc := ReviewConfig{
		Reviewers:      []string{"sydney", "joey"},
		StageReviewers: map[string][]string{"final_review": {"sydney"}},
	}
	sets, err := rc.ReviewerSets()
	if err != nil {
		t.Fatalf("ReviewerSets: %v", err)
	}
	if got := sets.For(review.StageConfigReview); !reflect.DeepEqual(got, []string{"sydney", "joey"}) {
		t.Errorf("config review set = %v", got)
	}
	if got := sets.For(review.StageFinalReview); !reflect.DeepEqual(got, []string{"sydney"}) {
		t.Errorf("final review set = %v", got)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BOB_DB_PATH", "/tmp/env.db")
	t.Setenv("BOB_REVIEWERS", "alice, bob")
	t.Setenv("BOB_LOG_LEVEL", "WARN")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("path = %s", cfg.Database.Path)
	}
	if !reflect.DeepEqual(cfg.Review.Reviewers, []string{"alice", "bob"}) {
		t.Errorf("reviewers = %v", cfg.Review.Reviewers)
	}
	if cfg.Telemetry.LogLevel != "warn" {
		t.Errorf("log_level = %s", cfg.Telemetry.LogLevel)
	}
}
