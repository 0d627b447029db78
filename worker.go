package capturex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohans/capturex/retry"
	"go.uber.org/zap"
)

// WorkerState is the worker's shutdown state machine.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("WorkerState(%d)", int32(s))
}

// ErrWorkerRunning is returned by Run when the worker is already running.
var ErrWorkerRunning = errors.New("worker already running")

type WorkerConfig struct {
	ID           string        // included in every log line
	PopTimeout   time.Duration // bound on each blocking pop (default: 30s)
	RecordTTL    time.Duration // TTL for running/terminal records (default: DefaultRecordTTL)
	ErrorBackoff time.Duration // pause after a queue error (default: 1s)
	Logger       *zap.Logger
	Metrics      *Metrics
}

// Worker pops one message at a time, runs the pipeline synchronously and
// records the outcome. Run several workers for parallelism.
type Worker struct {
	queue    Queue
	store    Store
	pipeline Pipeline
	cfg      WorkerConfig
	logger   *zap.Logger
	now      func() time.Time

	state    atomic.Int32
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	shutdown bool
}

func NewWorker(queue Queue, store Store, pipeline Pipeline, cfg WorkerConfig) *Worker {
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 30 * time.Second
	}
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = DefaultRecordTTL
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ID != "" {
		logger = logger.With(zap.String("worker_id", cfg.ID))
	}
	return &Worker{
		queue:    queue,
		store:    store,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// State returns the current state.
func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }

// Run consumes the queue until ctx is cancelled or Shutdown is called.
// Cancellation is only observed between pops: the pop in progress and the job
// in flight always run to completion. Run returns nil at once on a worker
// that has already been shut down.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	if w.done != nil {
		w.mu.Unlock()
		cancel()
		return ErrWorkerRunning
	}
	if w.shutdown {
		w.mu.Unlock()
		cancel()
		w.state.Store(int32(StateStopped))
		return nil
	}
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	w.mu.Unlock()

	w.state.Store(int32(StateRunning))
	defer func() {
		cancel()
		w.state.Store(int32(StateStopped))
		w.mu.Lock()
		w.cancel, w.done = nil, nil
		w.mu.Unlock()
		close(done)
		w.logger.Info("worker stopped")
	}()

	w.logger.Info("worker started", zap.Duration("pop_timeout", w.cfg.PopTimeout))
	work := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			w.state.Store(int32(StateShuttingDown))
			w.logger.Info("shutting down")
			return nil
		}

		msg, err := w.queue.Pop(work, w.cfg.PopTimeout)
		switch {
		case err == nil:
			w.process(work, msg)
		case errors.Is(err, ErrNoMessage):
		case errors.Is(err, ErrMalformedMessage):
			w.cfg.Metrics.incMalformed()
			w.logger.Error("dropping queue message", zap.Error(err))
			var me *MalformedMessageError
			if errors.As(err, &me) {
				w.reject(work, me)
			}
		default:
			w.logger.Error("queue pop failed", zap.Error(err))
			_ = retry.Sleep(ctx, w.cfg.ErrorBackoff)
		}
	}
}

// Shutdown asks Run to stop at the top of its loop and waits until it has.
// The request is latched: a Run started after Shutdown returns immediately.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	w.shutdown = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	w.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown))
	cancel()
	<-done
}

// process drives one job from running to a terminal record. It never returns an
// error: every failure ends up in the status store.
func (w *Worker) process(ctx context.Context, msg Message) {
	logger := w.logger.With(zap.String("job_id", msg.JobID))
	start := w.now()
	logger.Info("processing job")

	w.write(ctx, logger, msg.JobID, Running{StartedAt: start.UTC(), Payload: msg.Payload})

	out, err := w.runPipeline(ctx, msg.Payload)
	finished := w.now()
	if err != nil {
		logger.Error("job failed", zap.Error(err))
		w.write(ctx, logger, msg.JobID, Failed{FinishedAt: finished.UTC(), Error: err.Error()})
		w.cfg.Metrics.ObserveJob(StatusFailed, finished.Sub(start))
		return
	}

	w.write(ctx, logger, msg.JobID, Succeeded{
		FinishedAt:   finished.UTC(),
		Notion:       out.Artifact,
		Plan:         out.Plan,
		DeepResearch: out.Research,
	})
	w.cfg.Metrics.ObserveJob(StatusSucceeded, finished.Sub(start))
	logger.Info("job succeeded", zap.String("page_id", out.Artifact.PageID), zap.Duration("elapsed", finished.Sub(start)))
}

// reject records a terminal failure for a message whose payload could not be
// decoded, so its queued record does not linger until expiry.
func (w *Worker) reject(ctx context.Context, me *MalformedMessageError) {
	logger := w.logger.With(zap.String("job_id", me.JobID))
	w.write(ctx, logger, me.JobID, Failed{
		FinishedAt: w.now().UTC(),
		Error:      "invalid payload: " + me.Err.Error(),
	})
	w.cfg.Metrics.ObserveJob(StatusFailed, 0)
}

func (w *Worker) runPipeline(ctx context.Context, p Payload) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	out, err = w.pipeline.Run(ctx, p)
	if err == nil && out == nil {
		err = errors.New("pipeline returned no outcome")
	}
	return out, err
}

func (w *Worker) write(ctx context.Context, logger *zap.Logger, jobID string, rec Record) {
	if err := w.store.Set(ctx, jobID, rec, w.cfg.RecordTTL); err != nil {
		logger.Error("write job status", zap.String("status", string(rec.Status())), zap.Error(err))
	}
}
