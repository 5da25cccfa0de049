package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
	"github.com/vetly/vetly/internal/metrics"
)

// QueueStore is the queue surface the dispatcher mutates.
type QueueStore interface {
	DequeueBatch(ctx context.Context, limit int) ([]*db.QueueItem, error)
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error
	MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error
}

// LogStore appends one delivery-log row per attempt.
type LogStore interface {
	AppendDeliveryLog(ctx context.Context, l *db.DeliveryLog) error
}

// Config tunes the dispatcher loop.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
}

// Dispatcher drains the notification queue: claims a batch, sends each
// item concurrently, and settles every outcome back into the queue and
// the delivery log.
type Dispatcher struct {
	queue  QueueStore
	logs   LogStore
	sender Sender
	cfg    Config
	logger *zap.Logger
}

func NewDispatcher(queue QueueStore, logs LogStore, sender Sender, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Dispatcher{
		queue:  queue,
		logs:   logs,
		sender: sender,
		cfg:    cfg,
		logger: logger,
	}
}

// Start polls the queue until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		zap.Duration("poll_interval", d.cfg.PollInterval),
		zap.Int("batch_size", d.cfg.BatchSize),
	)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.ProcessBatch(ctx); err != nil {
				d.logger.Error("batch failed", zap.Error(err))
			}
		}
	}
}

type outcome struct {
	item *db.QueueItem
	res  *Result
	err  error
}

// ProcessBatch claims one batch and delivers it, returning how many
// items were attempted. Claimed items are always settled, even when the
// send fails.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	items, err := d.queue.DequeueBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	metrics.QueueDepth.Set(float64(len(items)))

	results := make(chan outcome, len(items))
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item *db.QueueItem) {
			defer wg.Done()
			start := time.Now()
			res, err := d.sender.Send(ctx, item)
			metrics.DispatchDuration.WithLabelValues(string(item.Channel)).Observe(time.Since(start).Seconds())
			results <- outcome{item: item, res: res, err: err}
		}(item)
	}
	wg.Wait()
	close(results)

	for o := range results {
		d.settle(ctx, o)
	}
	return len(items), nil
}

// settle records one attempt's outcome. A success marks the item sent; a
// failure retries unless the retry budget is exhausted or the error is a
// configuration problem, which no retry can fix.
func (d *Dispatcher) settle(ctx context.Context, o outcome) {
	item := o.item

	if o.err == nil {
		providerID := ""
		if o.res != nil {
			providerID = o.res.ProviderMessageID
		}
		if err := d.queue.MarkSent(ctx, item.ID, providerID); err != nil {
			d.logger.Error("mark sent failed", zap.String("id", item.ID.String()), zap.Error(err))
		}
		metrics.NotificationsProcessed.WithLabelValues(string(item.Channel), "sent").Inc()
		d.appendLog(ctx, item, db.QueueSent, nil)
		return
	}

	errMsg := o.err.Error()
	newCount := item.RetryCount + 1
	terminal := apperr.IsConfiguration(o.err) || newCount >= d.cfg.MaxRetries

	d.logger.Error("send failed",
		zap.String("id", item.ID.String()),
		zap.String("channel", string(item.Channel)),
		zap.Int("retry_count", newCount),
		zap.Bool("terminal", terminal),
		zap.Error(o.err),
	)
	metrics.NotificationsProcessed.WithLabelValues(string(item.Channel), "failed").Inc()

	if terminal {
		if err := d.queue.MarkFailed(ctx, item.ID, newCount, errMsg); err != nil {
			d.logger.Error("mark failed failed", zap.String("id", item.ID.String()), zap.Error(err))
		}
		d.appendLog(ctx, item, db.QueueFailed, &errMsg)
		return
	}

	if err := d.queue.MarkRetry(ctx, item.ID, newCount, errMsg); err != nil {
		d.logger.Error("mark retry failed", zap.String("id", item.ID.String()), zap.Error(err))
	}
	d.appendLog(ctx, item, db.QueueFailed, &errMsg)
}

func (d *Dispatcher) appendLog(ctx context.Context, item *db.QueueItem, status db.QueueStatus, errMsg *string) {
	l := &db.DeliveryLog{
		ID:          uuid.New(),
		TenantID:    item.TenantID,
		QueueItemID: item.ID,
		Channel:     item.Channel,
		Recipient:   item.RecipientAddress,
		Subject:     item.Subject,
		Status:      status,
		Error:       errMsg,
		Metadata:    item.Metadata,
	}
	if err := d.logs.AppendDeliveryLog(ctx, l); err != nil {
		d.logger.Error("delivery log append failed",
			zap.String("queue_item_id", item.ID.String()),
			zap.Error(err),
		)
	}
}
