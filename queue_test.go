package capturex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRedisQueue_FIFO(t *testing.T) {
	_, rdb := startMiniRedis(t)
	q := NewRedisQueue(rdb, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := q.Push(ctx, Message{JobID: fmt.Sprintf("j%d", i), Payload: Payload{TaskName: "t"}}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if n, err := q.Len(ctx); err != nil || n != 3 {
		t.Fatalf("Len = %d, %v", n, err)
	}
	for i := 0; i < 3; i++ {
		msg, err := q.Pop(ctx, time.Second)
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if want := fmt.Sprintf("j%d", i); msg.JobID != want {
			t.Fatalf("popped %s, want %s", msg.JobID, want)
		}
	}
}

func TestRedisQueue_PopTimeout(t *testing.T) {
	_, rdb := startMiniRedis(t)
	q := NewRedisQueue(rdb, "")
	if _, err := q.Pop(context.Background(), time.Second); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("expected ErrNoMessage, got %v", err)
	}
}

func TestRedisQueue_MalformedIsRemoved(t *testing.T) {
	s, rdb := startMiniRedis(t)
	q := NewRedisQueue(rdb, "")
	ctx := context.Background()

	if _, err := s.Push(DefaultQueueKey, "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Push(DefaultQueueKey, `{"payload":{}}`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := q.Pop(ctx, time.Second); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("pop %d: expected ErrMalformedMessage, got %v", i, err)
		}
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("malformed messages must be consumed, %d left", n)
	}
}

func TestRedisQueue_ConcurrentPopsNoDoubleDelivery(t *testing.T) {
	_, rdb := startMiniRedis(t)
	q := NewRedisQueue(rdb, "")
	ctx := context.Background()

	const total = 50
	for i := 0; i < total; i++ {
		if err := q.Push(ctx, Message{JobID: fmt.Sprintf("j%d", i)}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg, err := q.Pop(ctx, time.Second)
				if err != nil {
					return
				}
				mu.Lock()
				seen[msg.JobID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("saw %d distinct jobs, want %d", len(seen), total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("job %s delivered %d times", id, n)
		}
	}
}

func TestRedisQueue_PushRequiresJobID(t *testing.T) {
	_, rdb := startMiniRedis(t)
	if err := NewRedisQueue(rdb, "").Push(context.Background(), Message{}); err == nil {
		t.Fatalf("expected error for empty job id")
	}
}

func TestRedisQueue_PopAcceptsZonelessTimestamps(t *testing.T) {
	s, rdb := startMiniRedis(t)
	q := NewRedisQueue(rdb, "")
	ctx := context.Background()

	seed := []string{
		`{"job_id":"j1","payload":{"task_name":"Call","task_content":"x","client_time":"2024-05-01T10:00:00","task_date":"2024-05-02T00:00:00","device":"iphone"}}`,
		`{"job_id":"j2","payload":{"task_name":"Call","task_content":"x","client_time":"2024-05-01T10:00:00","task_date":"2024-05-02"}}`,
	}
	for _, v := range seed {
		if _, err := s.Push(DefaultQueueKey, v); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	msg, err := q.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("Pop j1: %v", err)
	}
	if got := msg.Payload.TaskDateString(); got != "2024-05-02T00:00:00" {
		t.Fatalf("task date = %q", got)
	}
	if ct, ok := msg.Payload.ClientTime.Time(); !ok || !ct.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("client time = %v, %v", ct, ok)
	}
	if string(msg.Payload.Extra["device"]) != `"iphone"` {
		t.Fatalf("extra attributes lost: %v", msg.Payload.Extra)
	}

	msg, err = q.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("Pop j2: %v", err)
	}
	if got := msg.Payload.TaskDateString(); got != "2024-05-02" {
		t.Fatalf("date-only task date = %q", got)
	}
}

func TestRedisQueue_UndecodablePayloadKeepsJobID(t *testing.T) {
	s, rdb := startMiniRedis(t)
	q := NewRedisQueue(rdb, "")

	if _, err := s.Push(DefaultQueueKey, `{"job_id":"j1","payload":{"task_name":42}}`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := q.Pop(context.Background(), time.Second)
	if !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
	var me *MalformedMessageError
	if !errors.As(err, &me) || me.JobID != "j1" {
		t.Fatalf("expected MalformedMessageError for j1, got %#v", err)
	}
}
