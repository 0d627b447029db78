package pipeline

import (
	"context"

	"github.com/mohans/capturex"
)

// Stage names used in logs and metrics.
const (
	StagePlan     = "plan"
	StageResearch = "research"
	StageCommit   = "commit"
)

// PlanRequest is the planning stage input. TaskDate is ISO 8601 as submitted, or empty.
type PlanRequest struct {
	TaskName    string
	TaskContent string
	TaskDate    string
}

// Planner produces a validated plan.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*capturex.Plan, error)
}

// Researcher answers a research question.
type Researcher interface {
	Research(ctx context.Context, question string) (*capturex.Research, error)
}

// CommitRequest is everything the commit sink renders. Research is nil when the
// research stage did not run.
type CommitRequest struct {
	Plan        capturex.Plan
	TaskContent string
	TaskDate    string
	Research    *capturex.Research
}

// Committer writes the durable artifact.
type Committer interface {
	Commit(ctx context.Context, req CommitRequest) (capturex.ArtifactRef, error)
}
