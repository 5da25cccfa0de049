package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
)

// QueueRepo handles the persisted notification queue.
type QueueRepo struct {
	db     *DB
	logger *zap.Logger
}

func NewQueueRepo(db *DB, logger *zap.Logger) *QueueRepo {
	return &QueueRepo{db: db, logger: logger}
}

const queueColumns = `
	id, tenant_id, channel, recipient_id, recipient_address,
	template_id, subject, body, priority, scheduled_for, metadata,
	status, retry_count, last_error, provider_message_id, failed_at, created_at`

func scanQueueItem(row pgx.Row) (*QueueItem, error) {
	var item QueueItem
	var metadata []byte
	err := row.Scan(
		&item.ID, &item.TenantID, &item.Channel,
		&item.RecipientID, &item.RecipientAddress,
		&item.TemplateID, &item.Subject, &item.Body, &item.Priority,
		&item.ScheduledFor, &metadata,
		&item.Status, &item.RetryCount, &item.LastError,
		&item.ProviderMessageID, &item.FailedAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &item, nil
}

// EnqueueNotification inserts a new pending queue item.
func (r *QueueRepo) EnqueueNotification(ctx context.Context, item *QueueItem) error {
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query := `
		INSERT INTO notification_queue (
			id, tenant_id, channel, recipient_id, recipient_address,
			template_id, subject, body, priority, scheduled_for, metadata,
			status, retry_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`

	err = r.db.Pool().QueryRow(ctx, query,
		item.ID, item.TenantID, item.Channel, item.RecipientID, item.RecipientAddress,
		item.TemplateID, item.Subject, item.Body, item.Priority, item.ScheduledFor, metadata,
		item.Status, item.RetryCount,
	).Scan(&item.CreatedAt)
	if err != nil {
		r.logger.Error("failed to enqueue notification",
			zap.Error(err),
			zap.String("queue_item_id", item.ID.String()),
			zap.String("channel", string(item.Channel)),
		)
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

// GetQueueItem retrieves a queue item by id.
func (r *QueueRepo) GetQueueItem(ctx context.Context, id uuid.UUID) (*QueueItem, error) {
	item, err := scanQueueItem(r.db.Pool().QueryRow(ctx,
		`SELECT `+queueColumns+` FROM notification_queue WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("notificación no encontrada")
	}
	if err != nil {
		return nil, fmt.Errorf("query queue item: %w", err)
	}
	return item, nil
}

// ListQueueByTenant returns a tenant's queue items, newest first.
func (r *QueueRepo) ListQueueByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*QueueItem, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+queueColumns+` FROM notification_queue
		 WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query queue items: %w", err)
	}
	defer rows.Close()

	var out []*QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DequeueBatch claims up to limit due pending items, ordered by priority
// descending then creation time ascending, and marks them processing in
// the same statement. SKIP LOCKED keeps two overlapping dispatcher runs
// from claiming the same rows.
func (r *QueueRepo) DequeueBatch(ctx context.Context, limit int) ([]*QueueItem, error) {
	query := `
		UPDATE notification_queue SET status = 'processing'
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE status = 'pending'
			  AND (scheduled_for IS NULL OR scheduled_for <= NOW())
			ORDER BY
				CASE priority
					WHEN 'urgent' THEN 3
					WHEN 'high'   THEN 2
					WHEN 'normal' THEN 1
					ELSE 0
				END DESC,
				created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + queueColumns

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	defer rows.Close()

	var out []*QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dequeued item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// MarkSent records a successful delivery. retry_count is left at the
// number of failed attempts that preceded the success.
func (r *QueueRepo) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE notification_queue
		 SET status = 'sent', provider_message_id = $2, last_error = NULL
		 WHERE id = $1`,
		id, providerMessageID,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notificación no encontrada")
	}
	return nil
}

// MarkRetry returns a failed item to pending for the next dispatcher run.
func (r *QueueRepo) MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE notification_queue
		 SET status = 'pending', retry_count = $2, last_error = $3
		 WHERE id = $1`,
		id, retryCount, errMsg,
	)
	if err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notificación no encontrada")
	}
	return nil
}

// MarkFailed moves an item to its terminal failed state.
func (r *QueueRepo) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE notification_queue
		 SET status = 'failed', retry_count = $2, last_error = $3, failed_at = $4
		 WHERE id = $1`,
		id, retryCount, errMsg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notificación no encontrada")
	}
	return nil
}

// CancelQueueItem cancels a still-pending item. Items already claimed or
// settled are left untouched.
func (r *QueueRepo) CancelQueueItem(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE notification_queue SET status = 'cancelled'
		 WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("cancel queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.BusinessRule("la notificación ya no puede ser cancelada")
	}
	return nil
}
