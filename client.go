package capturex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSource tags payloads submitted without a source.
const DefaultSource = "shortcut"

// Client submits jobs and reads their status.
type Client struct {
	queue  Queue
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

type ClientOptions struct {
	RecordTTL time.Duration // default: DefaultRecordTTL
	Logger    *zap.Logger
}

func NewClient(queue Queue, store Store, opts ClientOptions) *Client {
	ttl := opts.RecordTTL
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{queue: queue, store: store, ttl: ttl, logger: logger, now: time.Now}
}

// Submit writes the queued record first, then pushes the message, so a worker
// can never pop a job whose record does not exist yet. It returns the new job id.
func (c *Client) Submit(ctx context.Context, p Payload) (string, error) {
	if c.queue == nil || c.store == nil {
		return "", errors.New("client not configured")
	}
	if p.TaskName == "" {
		return "", errors.New("task_name is required")
	}
	if p.Source == "" {
		p.Source = DefaultSource
	}
	jobID := uuid.NewString()

	rec := Queued{CreatedAt: c.now().UTC(), Payload: p}
	if err := c.store.Set(ctx, jobID, rec, c.ttl); err != nil {
		return "", fmt.Errorf("write queued status: %w", err)
	}
	if err := c.queue.Push(ctx, Message{JobID: jobID, Payload: p}); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	c.logger.Info("enqueued job", zap.String("job_id", jobID))
	return jobID, nil
}

// Status returns the current record for jobID or ErrNotFound.
func (c *Client) Status(ctx context.Context, jobID string) (Record, error) {
	if c.store == nil {
		return nil, errors.New("client not configured")
	}
	return c.store.Get(ctx, jobID)
}
