// Package sqs publishes wake-up events for enqueued notifications. The
// database queue stays the source of truth; these events only let worker
// replicas react faster than their poll interval.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/db"
)

// Config holds SQS settings.
type Config struct {
	Region   string
	QueueURL string
}

// Message is the wake-up payload. It carries identifiers only; workers
// read the actual notification from the database queue.
type Message struct {
	QueueItemID string `json:"queue_item_id"`
	TenantID    string `json:"tenant_id"`
	Channel     string `json:"channel"`
	Priority    string `json:"priority"`
	EnqueuedAt  int64  `json:"enqueued_at"`
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Producer publishes wake-up events.
type Producer struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
}

func NewProducer(ctx context.Context, cfg Config, logger *zap.Logger) (*Producer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	logger.Info("sqs producer initialized",
		zap.String("queue_url", cfg.QueueURL),
	)
	return &Producer{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// Enqueue publishes one wake-up event and returns the SQS message id.
func (p *Producer) Enqueue(ctx context.Context, item *db.QueueItem) (string, error) {
	msg := Message{
		QueueItemID: item.ID.String(),
		TenantID:    item.TenantID.String(),
		Channel:     string(item.Channel),
		Priority:    string(item.Priority),
		EnqueuedAt:  time.Now().UnixNano(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	result, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		p.logger.Error("sqs send failed",
			zap.Error(err),
			zap.String("queue_item_id", item.ID.String()),
		)
		return "", fmt.Errorf("sqs send failed: %w", err)
	}
	return aws.ToString(result.MessageId), nil
}

// EnqueueBatch publishes events for several items, skipping failures.
// Losing an event is harmless: the poll loop still picks the item up.
func (p *Producer) EnqueueBatch(ctx context.Context, items []*db.QueueItem) []string {
	messageIDs := make([]string, 0, len(items))
	for _, item := range items {
		msgID, err := p.Enqueue(ctx, item)
		if err != nil {
			p.logger.Warn("wake-up event dropped", zap.Error(err))
			continue
		}
		messageIDs = append(messageIDs, msgID)
	}
	return messageIDs
}
