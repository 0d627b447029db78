// Package retry runs fallible remote calls with bounded retries and exponential
// backoff. The classification of an error as transient or permanent is pluggable
// per call site.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy configures Do.
type Policy struct {
	Name       string        // operation name used in logs
	MaxRetries int           // retries after the first attempt; 0 makes a single attempt
	BaseDelay  time.Duration // delay before the first retry, doubled each time (default: 1s)
	Classify   Classifier    // default: IsTransient
	Sleep      SleepFunc     // default: Sleep
	Logger     *zap.Logger

	// OnRetry is called before each backoff sleep with the 1-based attempt that failed.
	OnRetry func(attempt int, err error)
}

// DefaultMaxRetries is the retry count stages use when none is configured.
const DefaultMaxRetries = 2

// DefaultPolicy returns the policy used by every stage unless overridden.
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:       name,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  1 * time.Second,
		Classify:   IsTransient,
	}
}

// Backoff returns base * 2^attempt, attempt being zero-based.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base * time.Duration(1<<uint(attempt))
}

// Do calls op until it succeeds, returns a non-transient error, or MaxRetries+1
// attempts have been made. The error returned is always the one produced by op.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	classify := p.Classify
	if classify == nil {
		classify = IsTransient
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == maxRetries || !classify(err) {
			return zero, err
		}

		delay := Backoff(p.BaseDelay, attempt)
		logger.Warn("transient error, retrying",
			zap.String("op", p.Name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// DoErr is Do for operations without a result.
func DoErr(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Sleep blocks the calling goroutine only, returning early with ctx.Err() if ctx
// is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
