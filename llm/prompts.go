package llm

const planInstructions = `You are a task planning assistant. Given a task from the user, output a STRICT JSON object only. No markdown, no explanations. Output ONLY valid JSON matching this schema exactly:

{
  "need_deep_research": boolean,
  "deep_research_prompt": string | null,
  "research_todos": string[],
  "human_todos": string[],
  "notion_page_title": string,
  "summary": string,
  "tags": string[]
}

Rules:
- need_deep_research: true only if the task requires web research, external data, or non-obvious facts. false for straightforward execution tasks.
- deep_research_prompt: exactly one detailed research question if need_deep_research is true; otherwise null.
- research_todos: items requiring research before human action.
- human_todos: atomic, checkbox-ready action items for the user.
- notion_page_title: concise title for the Notion page.
- summary: brief task summary.
- tags: optional labels for the page.
Output JSON only.`

const planRepairInstructions = `Your previous response was not valid JSON. Please output ONLY a valid JSON object, no other text. Match the schema: need_deep_research, deep_research_prompt, research_todos, human_todos, notion_page_title, summary, tags.`

const researchInstructions = `You are a deep research assistant. Given a research prompt, output a STRICT JSON object only:

{
  "research_summary": string,
  "key_takeaways": string[],
  "sources": string[]
}

- research_summary: comprehensive summary of findings.
- key_takeaways: bullet points of main findings.
- sources: URLs or references if available.
Output JSON only.`

const researchRepairInstructions = `Your previous response was not valid JSON. Please output ONLY a valid JSON object, no other text. Match the schema: research_summary, key_takeaways, sources.`

// planInput renders the user turn for the planning call.
func planInput(name, content, date string) string {
	s := "Task name: " + name + "\nTask content: " + content
	if date != "" {
		s += "\nTask date: " + date
	}
	return s
}
