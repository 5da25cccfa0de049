package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryLogRepo appends the immutable per-attempt audit trail.
type DeliveryLogRepo struct {
	db     *DB
	logger *zap.Logger
}

func NewDeliveryLogRepo(db *DB, logger *zap.Logger) *DeliveryLogRepo {
	return &DeliveryLogRepo{db: db, logger: logger}
}

// AppendDeliveryLog records one delivery attempt. Rows are never updated.
func (r *DeliveryLogRepo) AppendDeliveryLog(ctx context.Context, l *DeliveryLog) error {
	metadata, err := json.Marshal(l.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	err = r.db.Pool().QueryRow(ctx,
		`INSERT INTO notification_log (
			id, tenant_id, queue_item_id, channel, recipient,
			subject, status, error, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		l.ID, l.TenantID, l.QueueItemID, l.Channel, l.Recipient,
		l.Subject, l.Status, l.Error, metadata,
	).Scan(&l.CreatedAt)
	if err != nil {
		r.logger.Error("failed to append delivery log",
			zap.Error(err),
			zap.String("queue_item_id", l.QueueItemID.String()),
		)
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// ListDeliveryLogByTenant returns a tenant's delivery attempts, newest
// first, for operational inspection.
func (r *DeliveryLogRepo) ListDeliveryLogByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*DeliveryLog, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT id, tenant_id, queue_item_id, channel, recipient,
		        subject, status, error, metadata, created_at
		 FROM notification_log
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query delivery log: %w", err)
	}
	defer rows.Close()

	var out []*DeliveryLog
	for rows.Next() {
		var l DeliveryLog
		var metadata []byte
		err := rows.Scan(
			&l.ID, &l.TenantID, &l.QueueItemID, &l.Channel, &l.Recipient,
			&l.Subject, &l.Status, &l.Error, &metadata, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
