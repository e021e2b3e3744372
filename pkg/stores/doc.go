// Package stores provides the persistence layer for the review workflow.
// It includes SQLite-based storage with WAL mode, connection pooling,
// embedded schema migrations, and operations over config units, reviewer
// approvals, and the audit log.
package stores
