package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/babybob/babybob/pkg/review"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements review.Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.cfg.Path
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// InsertUnit creates a new config unit row, including any approval flags
// already set on the unit.
func (s *SQLiteStore) InsertUnit(ctx context.Context, u review.ConfigUnit) error {
	frontierKeys, frontierValues, err := encodeFrontier(u.FrontierParams)
	if err != nil {
		return review.NewStoreError("insert unit", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return review.NewStoreError("insert unit", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO master_config (
			experiment, implementation, univ, frontier, frontier_keys,
			frontier_values, backtest_name, backtest_user, is_backtest_complete
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		u.Key.Experiment,
		u.Key.Implementation,
		u.Universe,
		u.Frontier,
		frontierKeys,
		frontierValues,
		u.BacktestName,
		u.BacktestUser,
		boolToInt(u.BacktestComplete),
	)
	if err != nil {
		return review.NewStoreError("insert unit", err)
	}

	for stage, flags := range u.Approvals {
		for reviewer, approved := range flags {
			if err := upsertApproval(ctx, tx, u.Key, stage, reviewer, approved); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return review.NewStoreError("insert unit", err)
	}
	return nil
}

// QueryUnits returns the units matching the filter in (experiment,
// implementation) order, with their approval flags attached.
func (s *SQLiteStore) QueryUnits(ctx context.Context, filter review.Filter) ([]review.ConfigUnit, error) {
	query := `
		SELECT experiment, implementation, univ, frontier, frontier_keys,
		       frontier_values, backtest_name, backtest_user, is_backtest_complete
		FROM master_config
		WHERE (? = '' OR experiment = ?)
		  AND (? = '' OR implementation = ?)
		ORDER BY experiment ASC, implementation ASC
	`

	rows, err := s.db.QueryContext(ctx, query,
		filter.Experiment, filter.Experiment,
		filter.Implementation, filter.Implementation,
	)
	if err != nil {
		return nil, review.NewStoreError("query units", err)
	}
	defer rows.Close()

	var units []review.ConfigUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, review.NewStoreError("scan unit", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, review.NewStoreError("iterate units", err)
	}

	if err := s.attachApprovals(ctx, units); err != nil {
		return nil, err
	}
	return units, nil
}

// GetUnit retrieves one unit by key.
func (s *SQLiteStore) GetUnit(ctx context.Context, key review.UnitKey) (*review.ConfigUnit, error) {
	query := `
		SELECT experiment, implementation, univ, frontier, frontier_keys,
		       frontier_values, backtest_name, backtest_user, is_backtest_complete
		FROM master_config
		WHERE experiment = ? AND implementation = ?
	`

	row := s.db.QueryRowContext(ctx, query, key.Experiment, key.Implementation)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, review.NewNotFoundError(key)
	}
	if err != nil {
		return nil, review.NewStoreError("get unit", err)
	}

	units := []review.ConfigUnit{u}
	if err := s.attachApprovals(ctx, units); err != nil {
		return nil, err
	}
	return &units[0], nil
}

// SetApproval sets or clears one reviewer's flag for an approval stage.
// The write is a self-contained transaction against the unit's key so a
// concurrent session mutating another unit is never clobbered.
func (s *SQLiteStore) SetApproval(ctx context.Context, key review.UnitKey, stage review.Stage, reviewer string, approved bool) error {
	if !stage.IsApproval() {
		return review.NewInvalidStageError(string(stage))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return review.NewStoreError("set approval", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM master_config WHERE experiment = ? AND implementation = ?`,
		key.Experiment, key.Implementation,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return review.NewNotFoundError(key)
	}
	if err != nil {
		return review.NewStoreError("set approval", err)
	}

	if err := upsertApproval(ctx, tx, key, stage, reviewer, approved); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return review.NewStoreError("set approval", err)
	}
	return nil
}

// SetBacktestComplete sets or clears the unit's backtest completion flag.
func (s *SQLiteStore) SetBacktestComplete(ctx context.Context, key review.UnitKey, complete bool) error {
	query := `
		UPDATE master_config
		SET is_backtest_complete = ?, updated_at = CURRENT_TIMESTAMP
		WHERE experiment = ? AND implementation = ?
	`

	result, err := s.db.ExecContext(ctx, query, boolToInt(complete), key.Experiment, key.Implementation)
	if err != nil {
		return review.NewStoreError("set backtest complete", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return review.NewStoreError("set backtest complete", err)
	}
	if rows == 0 {
		return review.NewNotFoundError(key)
	}
	return nil
}

// DeleteUnit removes a unit and, through the foreign key, its approvals.
func (s *SQLiteStore) DeleteUnit(ctx context.Context, key review.UnitKey) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM master_config WHERE experiment = ? AND implementation = ?`,
		key.Experiment, key.Implementation,
	)
	if err != nil {
		return review.NewStoreError("delete unit", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return review.NewStoreError("delete unit", err)
	}
	if rows == 0 {
		return review.NewNotFoundError(key)
	}
	return nil
}

// upsertApproval writes one reviewer flag inside the caller's transaction.
func upsertApproval(ctx context.Context, tx *sql.Tx, key review.UnitKey, stage review.Stage, reviewer string, approved bool) error {
	query := `
		INSERT INTO approvals (experiment, implementation, stage, reviewer, approved, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(experiment, implementation, stage, reviewer) DO UPDATE SET
			approved = excluded.approved,
			updated_at = excluded.updated_at
	`

	_, err := tx.ExecContext(ctx, query,
		key.Experiment,
		key.Implementation,
		stage.ApprovalKind(),
		reviewer,
		boolToInt(approved),
	)
	if err != nil {
		return review.NewStoreError("upsert approval", err)
	}
	return nil
}

// attachApprovals loads the approval flags for the given units in one query.
func (s *SQLiteStore) attachApprovals(ctx context.Context, units []review.ConfigUnit) error {
	if len(units) == 0 {
		return nil
	}

	index := make(map[review.UnitKey]*review.ConfigUnit, len(units))
	placeholders := make([]string, 0, len(units))
	args := make([]any, 0, 2*len(units))
	for i := range units {
		index[units[i].Key] = &units[i]
		placeholders = append(placeholders, "(?, ?)")
		args = append(args, units[i].Key.Experiment, units[i].Key.Implementation)
	}

	// Scoped to the requested keys so a single-unit read does not walk the
	// whole table; the row-value IN uses idx_approvals_unit.
	query := `
		SELECT experiment, implementation, stage, reviewer, approved
		FROM approvals
		WHERE (experiment, implementation) IN (VALUES ` + strings.Join(placeholders, ", ") + `)
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return review.NewStoreError("query approvals", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key review.UnitKey
		var token, reviewer string
		var approved int
		if err := rows.Scan(&key.Experiment, &key.Implementation, &token, &reviewer, &approved); err != nil {
			return review.NewStoreError("scan approval", err)
		}

		u, ok := index[key]
		if !ok {
			continue
		}
		stage, err := review.ParseStage(token)
		if err != nil {
			return review.NewStoreError("parse approval stage", err)
		}
		if u.Approvals == nil {
			u.Approvals = make(map[review.Stage]map[string]bool)
		}
		if u.Approvals[stage] == nil {
			u.Approvals[stage] = make(map[string]bool)
		}
		u.Approvals[stage][reviewer] = approved != 0
	}
	if err := rows.Err(); err != nil {
		return review.NewStoreError("iterate approvals", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (review.ConfigUnit, error) {
	var u review.ConfigUnit
	var frontierKeys, frontierValues string
	var backtestComplete int

	err := row.Scan(
		&u.Key.Experiment,
		&u.Key.Implementation,
		&u.Universe,
		&u.Frontier,
		&frontierKeys,
		&frontierValues,
		&u.BacktestName,
		&u.BacktestUser,
		&backtestComplete,
	)
	if err != nil {
		return u, err
	}

	u.BacktestComplete = backtestComplete != 0
	u.FrontierParams, err = decodeFrontier(frontierKeys, frontierValues)
	if err != nil {
		return u, err
	}
	return u, nil
}

// encodeFrontier splits ordered frontier params into parallel JSON arrays,
// the column layout the master_config table uses.
func encodeFrontier(params []review.FrontierParam) (string, string, error) {
	keys := make([]string, 0, len(params))
	values := make([]float64, 0, len(params))
	for _, p := range params {
		keys = append(keys, p.Key)
		values = append(values, p.Value)
	}

	k, err := json.Marshal(keys)
	if err != nil {
		return "", "", err
	}
	v, err := json.Marshal(values)
	if err != nil {
		return "", "", err
	}
	return string(k), string(v), nil
}

func decodeFrontier(frontierKeys, frontierValues string) ([]review.FrontierParam, error) {
	var keys []string
	var values []float64
	if err := json.Unmarshal([]byte(frontierKeys), &keys); err != nil {
		return nil, fmt.Errorf("frontier_keys: %w", err)
	}
	if err := json.Unmarshal([]byte(frontierValues), &values); err != nil {
		return nil, fmt.Errorf("frontier_values: %w", err)
	}
	if len(keys) != len(values) {
		return nil, fmt.Errorf("frontier columns disagree: %d keys, %d values", len(keys), len(values))
	}

	params := make([]review.FrontierParam, 0, len(keys))
	for i := range keys {
		params = append(params, review.FrontierParam{Key: keys[i], Value: values[i]})
	}
	return params, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
