package capturex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the Redis list holding pending messages.
const DefaultQueueKey = "queue:jobs"

var (
	// ErrNoMessage is returned by Pop when the timeout expires with nothing queued.
	ErrNoMessage = errors.New("no message")
	// ErrMalformedMessage is returned by Pop when the popped value cannot be decoded.
	// The value has already been removed from the queue.
	ErrMalformedMessage = errors.New("malformed queue message")
)

// MalformedMessageError is returned by Pop for a message whose job id was
// readable but whose payload was not. It matches ErrMalformedMessage.
type MalformedMessageError struct {
	JobID string
	Err   error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("%s: job %s: %v", ErrMalformedMessage, e.JobID, e.Err)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

func (e *MalformedMessageError) Is(target error) bool { return target == ErrMalformedMessage }

// Queue is a FIFO of job messages. Pop removes and returns the oldest message
// atomically, so concurrent consumers never receive the same message.
type Queue interface {
	Push(ctx context.Context, msg Message) error
	Pop(ctx context.Context, timeout time.Duration) (Message, error)
}

// RedisQueue implements Queue with RPUSH and BLPOP on a single list.
type RedisQueue struct {
	rdb redis.UniversalClient
	key string
}

func NewRedisQueue(rdb redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, msg Message) error {
	if msg.JobID == "" {
		return fmt.Errorf("push: empty job id")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("push %s: %w", msg.JobID, err)
	}
	return nil
}

// Pop blocks up to timeout. There is no acknowledgment: once returned, the
// message is gone from Redis whatever happens to the caller. A message with a
// job id but an unreadable payload yields a *MalformedMessageError.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (Message, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Message{}, ErrNoMessage
	}
	if err != nil {
		return Message{}, fmt.Errorf("pop: %w", err)
	}
	// res is [key, value]
	if len(res) != 2 {
		return Message{}, fmt.Errorf("%w: unexpected reply length %d", ErrMalformedMessage, len(res))
	}
	var env struct {
		JobID   string          `json:"job_id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.JobID == "" {
		return Message{}, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	msg := Message{JobID: env.JobID}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &msg.Payload); err != nil {
			return Message{JobID: env.JobID}, &MalformedMessageError{JobID: env.JobID, Err: err}
		}
	}
	return msg, nil
}

// Len returns the number of pending messages.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
