package capturex

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Timestamp is a submitted date or date-time kept as the text the client
// sent. Zone-less and date-only forms are accepted.
type Timestamp string

// NewTimestamp formats t as RFC 3339.
func NewTimestamp(t time.Time) *Timestamp {
	ts := Timestamp(t.Format(time.RFC3339))
	return &ts
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Time parses the timestamp. Values without a zone are read as UTC.
func (ts Timestamp) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(ts))
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Payload holds the task attributes captured at submission. It is never
// modified after enqueue: attributes not modelled here are kept in Extra and
// written back unchanged.
type Payload struct {
	TaskName    string     `json:"task_name"`
	TaskContent string     `json:"task_content"`
	TaskDate    *Timestamp `json:"task_date,omitempty"`
	ClientTime  *Timestamp `json:"client_time,omitempty"`
	Source      string     `json:"source,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type payloadFields Payload

var payloadKeys = []string{"task_name", "task_content", "task_date", "client_time", "source"}

func (p Payload) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(payloadFields(p))
	if err != nil || len(p.Extra) == 0 {
		return data, err
	}
	all := make(map[string]json.RawMessage, len(p.Extra)+len(payloadKeys))
	for k, v := range p.Extra {
		all[k] = v
	}
	known := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		all[k] = v
	}
	return json.Marshal(all)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var f payloadFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range payloadKeys {
		delete(all, k)
	}
	*p = Payload(f)
	if len(all) > 0 {
		p.Extra = all
	}
	return nil
}

// TaskDateString returns the task date as submitted, or "" when it is unset
// or cannot be read as a date.
func (p Payload) TaskDateString() string {
	if p.TaskDate == nil {
		return ""
	}
	if _, ok := p.TaskDate.Time(); !ok {
		return ""
	}
	return strings.TrimSpace(string(*p.TaskDate))
}

// Message is the queue wire format.
type Message struct {
	JobID   string  `json:"job_id"`
	Payload Payload `json:"payload"`
}

// Plan is the planning stage output.
type Plan struct {
	NeedDeepResearch   bool     `json:"need_deep_research"`
	DeepResearchPrompt *string  `json:"deep_research_prompt"`
	ResearchTodos      []string `json:"research_todos"`
	HumanTodos         []string `json:"human_todos"`
	NotionPageTitle    string   `json:"notion_page_title"`
	Summary            string   `json:"summary"`
	Tags               []string `json:"tags"`
}

// ResearchPrompt returns the research question and whether research should run.
func (p Plan) ResearchPrompt() (string, bool) {
	if !p.NeedDeepResearch || p.DeepResearchPrompt == nil || *p.DeepResearchPrompt == "" {
		return "", false
	}
	return *p.DeepResearchPrompt, true
}

// Research is the research stage output.
type Research struct {
	ResearchSummary string   `json:"research_summary"`
	KeyTakeaways    []string `json:"key_takeaways"`
	Sources         []string `json:"sources"`
}

// ArtifactRef identifies the committed Notion page.
type ArtifactRef struct {
	PageID  string `json:"page_id"`
	PageURL string `json:"page_url"`
}

// Outcome is the merged result of a successful pipeline run. Research is nil
// when the research stage did not run.
type Outcome struct {
	Artifact ArtifactRef
	Plan     Plan
	Research *Research
}

// Pipeline turns a payload into an outcome.
type Pipeline interface {
	Run(ctx context.Context, p Payload) (*Outcome, error)
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(ctx context.Context, p Payload) (*Outcome, error)

func (f PipelineFunc) Run(ctx context.Context, p Payload) (*Outcome, error) { return f(ctx, p) }
