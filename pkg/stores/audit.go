package stores

import (
	"context"
	"time"

	"github.com/babybob/babybob/pkg/review"
)

// AppendAudit creates a new audit log entry, stamping it with the current
// time when the caller left Timestamp zero, and fills in its generated ID.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO audit (action, actor, experiment, implementation, stage, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.Actor,
		entry.Experiment,
		entry.Implementation,
		entry.Stage,
		entry.Details,
		entry.Timestamp,
	)
	if err != nil {
		return review.NewStoreError("append audit", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return review.NewStoreError("append audit", err)
	}
	entry.ID = id
	return nil
}

// ListAudit lists audit entries, newest first, with optional filters and
// pagination.
func (s *SQLiteStore) ListAudit(ctx context.Context, filter AuditFilter, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, experiment, implementation, stage, details, timestamp
		FROM audit
		WHERE (? IS NULL OR action = ?)
		  AND (? IS NULL OR actor = ?)
		  AND (? IS NULL OR experiment = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		filter.Action, filter.Action,
		filter.Actor, filter.Actor,
		filter.Experiment, filter.Experiment,
		limit, offset,
	)
	if err != nil {
		return nil, review.NewStoreError("list audit", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.Experiment,
			&entry.Implementation,
			&entry.Stage,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, review.NewStoreError("scan audit entry", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, review.NewStoreError("iterate audit entries", err)
	}

	return entries, nil
}
