package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	At       time.Time
}

// AuditLogger writes records into audit_logs. Mutating CRUD operations
// record who changed what; reads are not audited.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	_, err := l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, occurred_at) VALUES ($1, $2, $3, $4, $5)`, log.ActorID, log.Action, log.Entity, log.EntityID, log.At)
	return err
}
