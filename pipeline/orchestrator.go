// Package pipeline sequences the three stages of a capture job: a mandatory
// plan, research only when the plan asks for it, and a mandatory commit.
// Stages run strictly in order and any stage error fails the whole job.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/mohans/capturex"
	"go.uber.org/zap"
)

type Config struct {
	Logger  *zap.Logger
	Metrics *capturex.Metrics
}

// Orchestrator implements capturex.Pipeline.
type Orchestrator struct {
	planner    Planner
	researcher Researcher
	committer  Committer
	logger     *zap.Logger
	metrics    *capturex.Metrics
}

func NewOrchestrator(planner Planner, researcher Researcher, committer Committer, cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		planner:    planner,
		researcher: researcher,
		committer:  committer,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Run executes plan, optional research and commit, and merges their outputs.
// Errors are returned as produced by the failing stage.
func (o *Orchestrator) Run(ctx context.Context, p capturex.Payload) (*capturex.Outcome, error) {
	if o.planner == nil || o.committer == nil {
		return nil, errors.New("pipeline: planner and committer are required")
	}
	date := p.TaskDateString()
	if p.TaskDate != nil && date == "" {
		o.logger.Warn("ignoring unreadable task_date", zap.String("task_date", string(*p.TaskDate)))
	}

	var plan *capturex.Plan
	err := o.stage(StagePlan, func() (err error) {
		plan, err = o.planner.Plan(ctx, PlanRequest{TaskName: p.TaskName, TaskContent: p.TaskContent, TaskDate: date})
		if err == nil && plan == nil {
			err = errors.New("planner returned no plan")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var research *capturex.Research
	if question, ok := plan.ResearchPrompt(); ok {
		if o.researcher == nil {
			return nil, errors.New("pipeline: plan needs research but no researcher is configured")
		}
		err := o.stage(StageResearch, func() (err error) {
			research, err = o.researcher.Research(ctx, question)
			if err == nil && research == nil {
				err = errors.New("researcher returned no result")
			}
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		o.logger.Debug("research not needed", zap.Bool("need_deep_research", plan.NeedDeepResearch))
	}

	var ref capturex.ArtifactRef
	err = o.stage(StageCommit, func() (err error) {
		ref, err = o.committer.Commit(ctx, CommitRequest{
			Plan:        *plan,
			TaskContent: p.TaskContent,
			TaskDate:    date,
			Research:    research,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return &capturex.Outcome{Artifact: ref, Plan: *plan, Research: research}, nil
}

func (o *Orchestrator) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	o.metrics.ObserveStage(name, elapsed, err)
	if err != nil {
		o.logger.Warn("stage failed", zap.String("stage", name), zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	o.logger.Debug("stage done", zap.String("stage", name), zap.Duration("elapsed", elapsed))
	return nil
}
