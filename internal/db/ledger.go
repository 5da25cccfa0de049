package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LedgerRepo handles the write-once reminder dedup ledger.
type LedgerRepo struct {
	db     *DB
	logger *zap.Logger
}

func NewLedgerRepo(db *DB, logger *zap.Logger) *LedgerRepo {
	return &LedgerRepo{db: db, logger: logger}
}

// TryInsertLedger inserts the dedup row if it does not already exist.
// Returns false when the reminder was already produced by an earlier run.
// The row is never updated or deleted afterwards.
func (r *LedgerRepo) TryInsertLedger(ctx context.Context, e *ReminderLedgerEntry) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx,
		`INSERT INTO reminder_ledger (tenant_id, entity_type, entity_id, reminder_key)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		e.TenantID, e.EntityType, e.EntityID, e.ReminderKey,
	)
	if err != nil {
		r.logger.Error("failed to insert reminder ledger entry",
			zap.Error(err),
			zap.String("reminder_key", e.ReminderKey),
		)
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
