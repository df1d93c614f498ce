package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// CallEvent is one row of the append-only audit trail: a model event
// handled by a call's actor, or a start/stop session kick.
type CallEvent struct {
	ID        uint      `gorm:"primaryKey"`
	CallID    string    `gorm:"index;size:128;not null"`
	SessionID string    `gorm:"size:128"`
	Kind      string    `gorm:"size:64;not null"` // e.g. "model_event", "session_kick"
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (CallEvent) TableName() string { return "call_events" }

// Ledger records call events and exposes the teacher's transactional
// RepositoryManager shape, scoped down to the one table this bridge needs.
type Ledger struct {
	db *gorm.DB
}

// Record appends one event. Failures are logged by the caller and
// never block call handling — the ledger is observability, not a
// source of truth for in-flight state.
func (l *Ledger) Record(ctx context.Context, callID, sessionID, kind, detail string) error {
	event := CallEvent{
		CallID:    callID,
		SessionID: sessionID,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	return l.db.WithContext(ctx).Create(&event).Error
}

// WithTx runs fn inside a transaction, mirroring the teacher's
// RepositoryManager.WithTx contract.
func (l *Ledger) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Ledger) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Ledger{db: tx})
	})
}

// Ping verifies the underlying connection is alive.
func (l *Ledger) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
