// Package notify delivers queued notifications: one Sender per channel,
// a router over them, and the dispatcher that drains the queue.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
)

// Result carries provider-side delivery details back to the dispatcher.
type Result struct {
	ProviderMessageID string
}

// Sender delivers one queue item over a single channel.
// Implementations: email (SES), SMS (SNS), WhatsApp (Cloud API), push.
type Sender interface {
	Send(ctx context.Context, item *db.QueueItem) (*Result, error)
	SupportsChannel(ch db.Channel) bool
}

// MultiSender routes each item to the first sender that supports its
// channel.
type MultiSender struct {
	senders []Sender
	logger  *zap.Logger
}

func NewMultiSender(logger *zap.Logger, senders ...Sender) *MultiSender {
	return &MultiSender{senders: senders, logger: logger}
}

func (m *MultiSender) Send(ctx context.Context, item *db.QueueItem) (*Result, error) {
	for _, sender := range m.senders {
		if sender.SupportsChannel(item.Channel) {
			m.logger.Debug("routing notification",
				zap.String("channel", string(item.Channel)),
				zap.String("queue_item_id", item.ID.String()),
			)
			return sender.Send(ctx, item)
		}
	}
	return nil, apperr.Configuration("no sender configured for channel %s", item.Channel)
}

func (m *MultiSender) SupportsChannel(ch db.Channel) bool {
	for _, sender := range m.senders {
		if sender.SupportsChannel(ch) {
			return true
		}
	}
	return false
}

// LogSender records notifications instead of delivering them. Used in
// development environments.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, item *db.QueueItem) (*Result, error) {
	s.logger.Info("notification logged (development mode)",
		zap.String("id", item.ID.String()),
		zap.String("channel", string(item.Channel)),
		zap.String("recipient", item.RecipientAddress),
		zap.String("subject", item.Subject),
	)
	return &Result{ProviderMessageID: "log-" + item.ID.String()}, nil
}

func (s *LogSender) SupportsChannel(ch db.Channel) bool {
	return ch.Valid()
}
