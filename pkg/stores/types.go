package stores

import "time"

// AuditAction identifies the workflow action an audit entry records.
type AuditAction string

const (
	AuditActionApprove      AuditAction = "approve"
	AuditActionRevoke       AuditAction = "revoke"
	AuditActionRunBacktest  AuditAction = "run_backtest"
	AuditActionInsertUnit   AuditAction = "insert_unit"
	AuditActionSeedDatabase AuditAction = "seed_database"
)

// AuditEntry is one append-only record of a workflow action.
type AuditEntry struct {
	ID             int64       `json:"id"`
	Action         AuditAction `json:"action"`
	Actor          string      `json:"actor,omitempty"`
	Experiment     string      `json:"experiment,omitempty"`
	Implementation string      `json:"implementation,omitempty"`
	Stage          string      `json:"stage,omitempty"`
	Details        *string     `json:"details,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// AuditFilter narrows an audit listing. Nil fields match everything.
type AuditFilter struct {
	Action     *AuditAction
	Actor      *string
	Experiment *string
}
