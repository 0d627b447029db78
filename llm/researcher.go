package llm

import (
	"context"
	"time"

	"github.com/mohans/capturex"
	"github.com/mohans/capturex/pipeline"
)

// DefaultResearchTimeout bounds each research call; web-search backed answers
// routinely take minutes.
const DefaultResearchTimeout = 600 * time.Second

// Researcher implements pipeline.Researcher with the web search tool enabled.
type Researcher struct {
	stage *stage[*capturex.Research]
}

func NewResearcher(gen Generator, cfg StageConfig, opts Options) *Researcher {
	return &Researcher{
		stage: newStage(pipeline.StageResearch, gen, cfg, DefaultResearchTimeout, researchRepairInstructions, DecodeResearch, opts),
	}
}

func (r *Researcher) Research(ctx context.Context, question string) (*capturex.Research, error) {
	return r.stage.run(ctx, Request{
		Model:        r.stage.cfg.Model,
		Instructions: researchInstructions,
		Input:        question,
		WebSearch:    true,
	})
}
