package notion

import (
	"testing"

	"github.com/mohans/capturex"
)

func blockTypes(blocks []Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b["type"].(string)
	}
	return out
}

func TestBuildBlocks_WithoutResearch(t *testing.T) {
	got := blockTypes(BuildBlocks("content", "summary", []string{"a"}, nil))
	want := []string{"paragraph", "paragraph", "heading_2", "to_do"}
	if len(got) != len(want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("types = %v, want %v", got, want)
		}
	}
}

func TestBuildBlocks_WithResearch(t *testing.T) {
	research := &capturex.Research{
		ResearchSummary: "findings",
		KeyTakeaways:    []string{"k1", "k2"},
		Sources:         []string{"https://example.com"},
	}
	got := blockTypes(BuildBlocks("content", "summary", nil, research))
	want := []string{
		"paragraph", "paragraph", "heading_2",
		"heading_2", "paragraph", "heading_3", "bulleted_list_item", "bulleted_list_item",
		"heading_3", "bulleted_list_item",
	}
	if len(got) != len(want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("block %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBuildProperties_DueDateNeedsBoth(t *testing.T) {
	if p := BuildProperties("Name", "t", "", "2026-10-20"); len(p) != 1 {
		t.Fatalf("no due prop configured: %v", p)
	}
	if p := BuildProperties("Name", "t", "Due", ""); len(p) != 1 {
		t.Fatalf("no task date: %v", p)
	}
	if p := BuildProperties("Title", "t", "Due", "2026-10-20"); len(p) != 2 || p["Title"] == nil {
		t.Fatalf("both set: %v", p)
	}
}
