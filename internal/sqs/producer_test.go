package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/db"
)

type fakeSQS struct {
	sent []*awssqs.SendMessageInput
	err  error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *awssqs.SendMessageInput, _ ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &awssqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

func testItem() *db.QueueItem {
	return &db.QueueItem{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Channel:  db.ChannelEmail,
		Priority: db.PriorityHigh,
	}
}

func TestEnqueuePublishesIdentifiersOnly(t *testing.T) {
	fake := &fakeSQS{}
	p := &Producer{client: fake, queueURL: "https://sqs.test/q", logger: zap.NewNop()}
	item := testItem()
	item.Body = "private reminder text"

	msgID, err := p.Enqueue(context.Background(), item)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if msgID != "sqs-1" {
		t.Fatalf("message id = %q", msgID)
	}

	var msg Message
	if err := json.Unmarshal([]byte(aws.ToString(fake.sent[0].MessageBody)), &msg); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if msg.QueueItemID != item.ID.String() || msg.Channel != "email" || msg.Priority != "high" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.EnqueuedAt == 0 {
		t.Fatal("enqueued_at not set")
	}
	// The body stays in the database; the event must not leak it.
	if body := aws.ToString(fake.sent[0].MessageBody); len(body) > 0 && json.Valid([]byte(body)) {
		var raw map[string]any
		_ = json.Unmarshal([]byte(body), &raw)
		if _, ok := raw["body"]; ok {
			t.Fatal("wake-up event carries notification body")
		}
	}
}

func TestEnqueueBatchSkipsFailures(t *testing.T) {
	fake := &fakeSQS{err: errors.New("throttled")}
	p := &Producer{client: fake, queueURL: "https://sqs.test/q", logger: zap.NewNop()}

	ids := p.EnqueueBatch(context.Background(), []*db.QueueItem{testItem(), testItem()})
	if len(ids) != 0 {
		t.Fatalf("ids = %v, want none on total failure", ids)
	}

	fake.err = nil
	ids = p.EnqueueBatch(context.Background(), []*db.QueueItem{testItem(), testItem()})
	if len(ids) != 2 {
		t.Fatalf("ids = %d, want 2", len(ids))
	}
}
