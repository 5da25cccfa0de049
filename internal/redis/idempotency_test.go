package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return &Client{rdb: rdb, logger: zap.NewNop()}, mr
}

func TestIdempotencyNewRequest(t *testing.T) {
	client, _ := setupTestRedis(t)
	svc := NewIdempotencyService(client, zap.NewNop())

	result, err := svc.CheckOrReserve(context.Background(), "tenant-1", "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("new request returned cached result: %+v", result)
	}
}

func TestIdempotencyDuplicateInFlight(t *testing.T) {
	client, _ := setupTestRedis(t)
	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CheckOrReserve(ctx, "tenant-1", "key-1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := svc.CheckOrReserve(ctx, "tenant-1", "key-1"); err != ErrDuplicateRequest {
		t.Fatalf("want ErrDuplicateRequest, got %v", err)
	}
}

func TestIdempotencyReplaysStoredResult(t *testing.T) {
	client, _ := setupTestRedis(t)
	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CheckOrReserve(ctx, "tenant-1", "key-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	stored := &IdempotencyResult{
		ResourceID: "a1b2c3",
		StatusCode: 201,
		CreatedAt:  time.Now().Unix(),
	}
	if err := svc.Store(ctx, "tenant-1", "key-1", stored, IdempotencyTTL); err != nil {
		t.Fatalf("store: %v", err)
	}

	result, err := svc.CheckOrReserve(ctx, "tenant-1", "key-1")
	if err != nil {
		t.Fatalf("replay check: %v", err)
	}
	if result == nil || result.ResourceID != "a1b2c3" || result.StatusCode != 201 {
		t.Fatalf("replayed result = %+v", result)
	}
}

func TestIdempotencyTenantIsolation(t *testing.T) {
	client, _ := setupTestRedis(t)
	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CheckOrReserve(ctx, "tenant-a", "same-key"); err != nil {
		t.Fatalf("tenant a: %v", err)
	}

	result, err := svc.CheckOrReserve(ctx, "tenant-b", "same-key")
	if err != nil {
		t.Fatalf("tenant b must not collide: %v", err)
	}
	if result != nil {
		t.Fatalf("tenant b got tenant a's result: %+v", result)
	}
}

func TestIdempotencyReservationExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CheckOrReserve(ctx, "tenant-1", "key-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	mr.FastForward(processingTTL + time.Second)

	result, err := svc.CheckOrReserve(ctx, "tenant-1", "key-1")
	if err != nil {
		t.Fatalf("after expiry: %v", err)
	}
	if result != nil {
		t.Fatalf("expired key returned result: %+v", result)
	}
}
