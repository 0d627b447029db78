package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohans/capturex"
	"github.com/mohans/capturex/extract"
	"github.com/mohans/capturex/retry"
	"go.uber.org/zap"
)

// ErrUnparsableOutput is returned when neither the response nor its single
// repair yields an object matching the stage schema. It is never retried.
var ErrUnparsableOutput = errors.New("could not parse model output as valid JSON")

var errNoObject = errors.New("no JSON object found")

// StageConfig tunes one generative stage.
type StageConfig struct {
	Model      string
	Timeout    time.Duration // per call
	MaxRetries int           // 0 disables retries, negative selects retry.DefaultMaxRetries
	BaseDelay  time.Duration // default: 1s
}

// Options are shared by Planner and Researcher.
type Options struct {
	Logger  *zap.Logger
	Metrics *capturex.Metrics
	Sleep   retry.SleepFunc // backoff sleep, default retry.Sleep
}

type stage[T any] struct {
	name               string
	gen                Generator
	cfg                StageConfig
	repairInstructions string
	decode             func(raw []byte) (T, error)
	logger             *zap.Logger
	metrics            *capturex.Metrics
	sleep              retry.SleepFunc
}

func newStage[T any](name string, gen Generator, cfg StageConfig, defaultTimeout time.Duration, repair string, decode func([]byte) (T, error), opts Options) *stage[T] {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = retry.DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &stage[T]{
		name:               name,
		gen:                gen,
		cfg:                cfg,
		repairInstructions: repair,
		decode:             decode,
		logger:             logger.With(zap.String("stage", name)),
		metrics:            opts.Metrics,
		sleep:              opts.Sleep,
	}
}

// run sends req with retries, then extracts and validates the response. A
// response that fails either step gets exactly one repair request.
func (s *stage[T]) run(ctx context.Context, req Request) (T, error) {
	var zero T
	policy := retry.Policy{
		Name:       s.name,
		MaxRetries: s.cfg.MaxRetries,
		BaseDelay:  s.cfg.BaseDelay,
		Classify:   IsTransient,
		Sleep:      s.sleep,
		Logger:     s.logger,
		OnRetry:    func(int, error) { s.metrics.IncRetry(s.name) },
	}
	text, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		return s.call(ctx, req)
	})
	if err != nil {
		return zero, fmt.Errorf("%s: %w", s.name, err)
	}

	v, perr := s.parse(text)
	if perr == nil {
		return v, nil
	}
	s.logger.Warn("output did not parse, requesting repair", zap.String("reason", perr.Error()))

	input := text
	if strings.TrimSpace(input) == "" {
		input = "No output."
	}
	repaired, err := s.call(ctx, Request{
		Model:        req.Model,
		Instructions: s.repairInstructions,
		Input:        input,
	})
	if err != nil {
		return zero, fmt.Errorf("%s repair: %w", s.name, err)
	}
	v, perr = s.parse(repaired)
	if perr != nil {
		return zero, retry.Permanent(fmt.Errorf("%s: %w after repair: %v", s.name, ErrUnparsableOutput, perr))
	}
	s.logger.Info("repaired output parsed")
	return v, nil
}

func (s *stage[T]) call(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.gen.Generate(ctx, req)
}

func (s *stage[T]) parse(text string) (T, error) {
	var zero T
	raw, ok := extract.Object(text)
	if !ok {
		return zero, errNoObject
	}
	return s.decode(raw)
}
