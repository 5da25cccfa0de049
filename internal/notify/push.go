package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
)

// PushSender is a placeholder for mobile push delivery. The channel is
// accepted by the queue so clients can enqueue ahead of the rollout, but
// every send fails terminally until a provider is wired.
type PushSender struct {
	logger *zap.Logger
}

func NewPushSender(logger *zap.Logger) *PushSender {
	return &PushSender{logger: logger}
}

func (s *PushSender) Send(_ context.Context, item *db.QueueItem) (*Result, error) {
	s.logger.Warn("push delivery not available",
		zap.String("id", item.ID.String()),
	)
	return nil, apperr.Configuration("push channel not implemented")
}

func (s *PushSender) SupportsChannel(ch db.Channel) bool {
	return ch == db.ChannelPush
}
