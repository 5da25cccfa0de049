package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/circuitbreaker"
	"github.com/vetly/vetly/internal/db"
)

// ProtectedSender wraps a Sender with a circuit breaker. When the
// provider starts failing, the circuit opens and sends fail fast as
// retryable provider errors instead of piling up on a dead service.
type ProtectedSender struct {
	sender  Sender
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewProtectedSender(sender Sender, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *ProtectedSender) Send(ctx context.Context, item *db.QueueItem) (*Result, error) {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit open, failing fast",
			zap.String("breaker", p.breaker.Name()),
			zap.String("queue_item_id", item.ID.String()),
			zap.String("channel", string(item.Channel)),
		)
		return nil, apperr.Provider(p.breaker.Name()+" unavailable", circuitbreaker.ErrCircuitOpen)
	}

	res, err := p.sender.Send(ctx, item)
	if err != nil {
		// Configuration errors say nothing about provider health.
		if !apperr.IsConfiguration(err) {
			p.breaker.RecordFailure()
		}
		return nil, err
	}

	p.breaker.RecordSuccess()
	return res, nil
}

func (p *ProtectedSender) SupportsChannel(ch db.Channel) bool {
	return p.sender.SupportsChannel(ch)
}

// Breaker exposes the underlying breaker for health reporting.
func (p *ProtectedSender) Breaker() *circuitbreaker.CircuitBreaker {
	return p.breaker
}
