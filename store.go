package capturex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultKeyPrefix prefixes status record keys in Redis.
	DefaultKeyPrefix = "job:"
	// DefaultRecordTTL is how long a status record survives its last write.
	DefaultRecordTTL = 21600 * time.Second
)

var (
	// ErrNotFound means the record never existed or has expired.
	ErrNotFound = errors.New("job not found or expired")
	// ErrInvalidTTL is returned for a non-positive TTL.
	ErrInvalidTTL = errors.New("ttl must be positive")
)

// Store persists one status record per job id. Each Set replaces the whole
// record and restarts its TTL; the last writer wins.
// Implementations must be safe for concurrent use.
type Store interface {
	Set(ctx context.Context, jobID string, rec Record, ttl time.Duration) error
	Get(ctx context.Context, jobID string) (Record, error)
}

type RedisStoreOptions struct {
	KeyPrefix string
	Logger    *zap.Logger
}

// RedisStore keeps records as JSON strings under "<prefix><job id>".
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	logger *zap.Logger
}

func NewRedisStore(rdb redis.UniversalClient, opts RedisStoreOptions) *RedisStore {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *RedisStore) key(jobID string) string { return s.prefix + jobID }

func (s *RedisStore) Set(ctx context.Context, jobID string, rec Record, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := MarshalRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record for job %s: %w", jobID, err)
	}
	if err := s.rdb.Set(ctx, s.key(jobID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set job %s: %w", jobID, err)
	}
	s.logger.Debug("job status set", zap.String("job_id", jobID), zap.String("status", string(rec.Status())))
	return nil
}

// Get returns ErrNotFound for missing, expired, or undecodable records.
func (s *RedisStore) Get(ctx context.Context, jobID string) (Record, error) {
	data, err := s.rdb.Get(ctx, s.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	rec, err := UnmarshalRecord(data)
	if err != nil {
		s.logger.Warn("invalid job record", zap.String("job_id", jobID), zap.Error(err))
		return nil, ErrNotFound
	}
	return rec, nil
}
