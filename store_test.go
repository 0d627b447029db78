package capturex

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func startMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		s.Close()
	})
	return s, rdb
}

func sampleSucceeded() Succeeded {
	prompt := "Which milk keeps longest?"
	return Succeeded{
		FinishedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Notion:     ArtifactRef{PageID: "abc", PageURL: "https://x/abc"},
		Plan: Plan{
			NeedDeepResearch:   true,
			DeepResearchPrompt: &prompt,
			ResearchTodos:      []string{},
			HumanTodos:         []string{"go to store"},
			NotionPageTitle:    "Buy milk",
			Summary:            "Buy 2% milk",
			Tags:               []string{"errand"},
		},
		DeepResearch: &Research{ResearchSummary: "UHT lasts longer", KeyTakeaways: []string{"UHT"}, Sources: []string{}},
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	_, rdb := startMiniRedis(t)
	store := NewRedisStore(rdb, RedisStoreOptions{})
	ctx := context.Background()

	records := map[string]Record{
		"q": Queued{CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), Payload: Payload{TaskName: "Buy milk", TaskContent: "2% milk", Source: "shortcut"}},
		"r": Running{StartedAt: time.Date(2026, 10, 19, 9, 1, 0, 0, time.UTC), Payload: Payload{TaskName: "Buy milk"}},
		"s": sampleSucceeded(),
		"f": Failed{FinishedAt: time.Date(2026, 10, 19, 9, 2, 0, 0, time.UTC), Error: "boom"},
	}
	for id, rec := range records {
		if err := store.Set(ctx, id, rec, time.Hour); err != nil {
			t.Fatalf("Set %s: %v", id, err)
		}
		got, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get %s: %v", id, err)
		}
		if diff := cmp.Diff(rec, got); diff != "" {
			t.Fatalf("record %s mismatch (-want +got):\n%s", id, diff)
		}
	}
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	s, rdb := startMiniRedis(t)
	store := NewRedisStore(rdb, RedisStoreOptions{KeyPrefix: "test:"})
	ctx := context.Background()

	if err := store.Set(ctx, "j1", Failed{FinishedAt: time.Now().UTC(), Error: "x"}, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !s.Exists("test:j1") {
		t.Fatalf("expected key test:j1")
	}
	s.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "j1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
	if _, err := store.Get(ctx, "never"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestRedisStore_LastWriterWinsAndTTLRestarts(t *testing.T) {
	s, rdb := startMiniRedis(t)
	store := NewRedisStore(rdb, RedisStoreOptions{})
	ctx := context.Background()

	if err := store.Set(ctx, "j1", Queued{CreatedAt: time.Now().UTC()}, 10*time.Second); err != nil {
		t.Fatalf("Set queued: %v", err)
	}
	s.FastForward(8 * time.Second)
	if err := store.Set(ctx, "j1", Running{StartedAt: time.Now().UTC()}, 10*time.Second); err != nil {
		t.Fatalf("Set running: %v", err)
	}
	s.FastForward(8 * time.Second)

	got, err := store.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status() != StatusRunning {
		t.Fatalf("status = %s, want running", got.Status())
	}
}

func TestRedisStore_InvalidTTL(t *testing.T) {
	_, rdb := startMiniRedis(t)
	store := NewRedisStore(rdb, RedisStoreOptions{})
	if err := store.Set(context.Background(), "j1", Failed{}, 0); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestRedisStore_CorruptRecordIsNotFound(t *testing.T) {
	s, rdb := startMiniRedis(t)
	store := NewRedisStore(rdb, RedisStoreOptions{})
	if err := s.Set("job:bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Get(context.Background(), "bad"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStore_NilRecord(t *testing.T) {
	_, rdb := startMiniRedis(t)
	store := NewRedisStore(rdb, RedisStoreOptions{})
	if err := store.Set(context.Background(), "j1", nil, time.Minute); err == nil {
		t.Fatal("expected error for nil record")
	}
	if _, err := store.Get(context.Background(), "j1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after failed Set: %v", err)
	}
}
