package capturex

import (
	"context"
	"testing"
	"time"
)

func TestClient_SubmitWritesQueuedThenPushes(t *testing.T) {
	s, rdb := startMiniRedis(t)
	queue := NewRedisQueue(rdb, "")
	store := NewRedisStore(rdb, RedisStoreOptions{})
	client := NewClient(queue, store, ClientOptions{RecordTTL: time.Minute})
	ctx := context.Background()

	id, err := client.Submit(ctx, Payload{TaskName: "Buy milk", TaskContent: "2% milk"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == "" {
		t.Fatal("job id should not be empty")
	}

	rec, err := client.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	q, ok := rec.(Queued)
	if !ok {
		t.Fatalf("expected Queued, got %T", rec)
	}
	if q.Payload.Source != DefaultSource {
		t.Fatalf("source = %q, want %q", q.Payload.Source, DefaultSource)
	}
	if ttl := s.TTL(DefaultKeyPrefix + id); ttl != time.Minute {
		t.Fatalf("ttl = %s, want 1m", ttl)
	}

	msg, err := queue.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if msg.JobID != id || msg.Payload.TaskName != "Buy milk" {
		t.Fatalf("unexpected message %#v", msg)
	}
}

func TestClient_SubmitRequiresTaskName(t *testing.T) {
	_, rdb := startMiniRedis(t)
	client := NewClient(NewRedisQueue(rdb, ""), NewRedisStore(rdb, RedisStoreOptions{}), ClientOptions{})
	if _, err := client.Submit(context.Background(), Payload{TaskContent: "x"}); err == nil {
		t.Fatal("expected error for missing task_name")
	}
}
