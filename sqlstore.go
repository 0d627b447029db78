package capturex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CreateTableSQL is the schema SQLStore expects.
const CreateTableSQL = `
CREATE TABLE IF NOT EXISTS capturex_jobs (
    id          VARCHAR(64) PRIMARY KEY,
    status      VARCHAR(32) NOT NULL,
    record_json TEXT        NOT NULL,
    expires_at  BIGINT      NOT NULL,
    updated_at  BIGINT      NOT NULL
);
`

// SQLStore is a Store backed by a relational DB using '?' placeholders
// (SQLite, MySQL). Expiry is stored as unix milliseconds and enforced on read.
type SQLStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

type SQLStoreOptions struct {
	Logger *zap.Logger
	Now    func() time.Time // defaults to time.Now
}

func NewSQLStore(db *sql.DB, opts SQLStoreOptions) *SQLStore {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{db: db, now: now, logger: logger}
}

// Migrate creates the table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	_, err := s.db.ExecContext(ctx, CreateTableSQL)
	return err
}

func (s *SQLStore) Set(ctx context.Context, jobID string, rec Record, ttl time.Duration) error {
	if s.db == nil {
		return errors.New("nil db")
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := MarshalRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record for job %s: %w", jobID, err)
	}
	now := s.now()
	q := `INSERT INTO capturex_jobs (id, status, record_json, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			record_json = excluded.record_json,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q, jobID, string(rec.Status()), string(data), now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("set job %s: %w", jobID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, jobID string) (Record, error) {
	if s.db == nil {
		return nil, errors.New("nil db")
	}
	var data string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT record_json, expires_at FROM capturex_jobs WHERE id = ?`, jobID).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if expiresAt <= s.now().UnixMilli() {
		// expired rows are removed lazily; a failed delete only delays cleanup
		if _, err := s.db.ExecContext(ctx, `DELETE FROM capturex_jobs WHERE id = ? AND expires_at = ?`, jobID, expiresAt); err != nil {
			s.logger.Warn("delete expired job", zap.String("job_id", jobID), zap.Error(err))
		}
		return nil, ErrNotFound
	}
	rec, err := UnmarshalRecord([]byte(data))
	if err != nil {
		s.logger.Warn("invalid job record", zap.String("job_id", jobID), zap.Error(err))
		return nil, ErrNotFound
	}
	return rec, nil
}

// PurgeExpired deletes every expired row and returns how many were removed.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errors.New("nil db")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM capturex_jobs WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
