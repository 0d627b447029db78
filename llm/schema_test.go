package llm

import (
	"errors"
	"testing"
)

func TestDecodePlan_Required(t *testing.T) {
	_, err := DecodePlan([]byte(`{"need_deep_research":true}`))
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(se.Missing) != 2 || se.Missing[0] != "notion_page_title" || se.Missing[1] != "summary" {
		t.Fatalf("missing = %v", se.Missing)
	}
}

func TestDecodePlan_WrongType(t *testing.T) {
	_, err := DecodePlan([]byte(`{"need_deep_research":true,"notion_page_title":"t","summary":"s","human_todos":"one"}`))
	var se *SchemaError
	if !errors.As(err, &se) || se.Err == nil {
		t.Fatalf("expected type SchemaError, got %v", err)
	}
}

func TestDecodePlan_Defaults(t *testing.T) {
	plan, err := DecodePlan([]byte(`{"need_deep_research":true,"deep_research_prompt":"why?","notion_page_title":"t","summary":"s"}`))
	if err != nil {
		t.Fatalf("DecodePlan: %v", err)
	}
	if plan.ResearchTodos == nil || plan.HumanTodos == nil || plan.Tags == nil {
		t.Fatalf("lists must default to empty, got %#v", plan)
	}
	if q, ok := plan.ResearchPrompt(); !ok || q != "why?" {
		t.Fatalf("ResearchPrompt = %q, %v", q, ok)
	}
}

func TestDecodeResearch_Required(t *testing.T) {
	if _, err := DecodeResearch([]byte(`{"key_takeaways":[]}`)); err == nil {
		t.Fatal("expected error for missing research_summary")
	}
}
