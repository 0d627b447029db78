package llm

import (
	"context"
	"time"

	"github.com/mohans/capturex"
	"github.com/mohans/capturex/pipeline"
)

// DefaultPlanTimeout bounds each planning call.
const DefaultPlanTimeout = 60 * time.Second

// Planner implements pipeline.Planner.
type Planner struct {
	stage *stage[*capturex.Plan]
}

func NewPlanner(gen Generator, cfg StageConfig, opts Options) *Planner {
	return &Planner{
		stage: newStage(pipeline.StagePlan, gen, cfg, DefaultPlanTimeout, planRepairInstructions, DecodePlan, opts),
	}
}

func (p *Planner) Plan(ctx context.Context, req pipeline.PlanRequest) (*capturex.Plan, error) {
	return p.stage.run(ctx, Request{
		Model:        p.stage.cfg.Model,
		Instructions: planInstructions,
		Input:        planInput(req.TaskName, req.TaskContent, req.TaskDate),
	})
}
