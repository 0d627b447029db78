package llm

import (
	"encoding/json"
	"strings"

	"github.com/mohans/capturex"
)

// SchemaError reports a decoded object that does not match the stage schema.
type SchemaError struct {
	Missing []string
	Err     error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return "schema: " + e.Err.Error()
	}
	return "schema: missing required fields " + strings.Join(e.Missing, ", ")
}

func (e *SchemaError) Unwrap() error { return e.Err }

type planWire struct {
	NeedDeepResearch   *bool    `json:"need_deep_research"`
	DeepResearchPrompt *string  `json:"deep_research_prompt"`
	ResearchTodos      []string `json:"research_todos"`
	HumanTodos         []string `json:"human_todos"`
	NotionPageTitle    *string  `json:"notion_page_title"`
	Summary            *string  `json:"summary"`
	Tags               []string `json:"tags"`
}

// DecodePlan validates raw against the plan schema. Lists default to empty.
func DecodePlan(raw []byte) (*capturex.Plan, error) {
	var w planWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &SchemaError{Err: err}
	}
	var missing []string
	if w.NeedDeepResearch == nil {
		missing = append(missing, "need_deep_research")
	}
	if w.NotionPageTitle == nil {
		missing = append(missing, "notion_page_title")
	}
	if w.Summary == nil {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return &capturex.Plan{
		NeedDeepResearch:   *w.NeedDeepResearch,
		DeepResearchPrompt: w.DeepResearchPrompt,
		ResearchTodos:      orEmpty(w.ResearchTodos),
		HumanTodos:         orEmpty(w.HumanTodos),
		NotionPageTitle:    *w.NotionPageTitle,
		Summary:            *w.Summary,
		Tags:               orEmpty(w.Tags),
	}, nil
}

type researchWire struct {
	ResearchSummary *string  `json:"research_summary"`
	KeyTakeaways    []string `json:"key_takeaways"`
	Sources         []string `json:"sources"`
}

// DecodeResearch validates raw against the research schema.
func DecodeResearch(raw []byte) (*capturex.Research, error) {
	var w researchWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &SchemaError{Err: err}
	}
	if w.ResearchSummary == nil {
		return nil, &SchemaError{Missing: []string{"research_summary"}}
	}
	return &capturex.Research{
		ResearchSummary: *w.ResearchSummary,
		KeyTakeaways:    orEmpty(w.KeyTakeaways),
		Sources:         orEmpty(w.Sources),
	}, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
