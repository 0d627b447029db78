package notion

import "github.com/mohans/capturex"

// Block is one Notion block object. Blocks are polymorphic on "type", so they
// are kept as plain maps.
type Block map[string]any

func richText(content string) []map[string]any {
	return []map[string]any{{"type": "text", "text": map[string]any{"content": content}}}
}

func textBlock(kind, content string) Block {
	return Block{"object": "block", "type": kind, kind: map[string]any{"rich_text": richText(content)}}
}

func paragraph(content string) Block { return textBlock("paragraph", content) }
func heading2(content string) Block  { return textBlock("heading_2", content) }
func heading3(content string) Block  { return textBlock("heading_3", content) }
func bullet(content string) Block    { return textBlock("bulleted_list_item", content) }

func todo(content string) Block {
	return Block{"object": "block", "type": "to_do", "to_do": map[string]any{
		"rich_text": richText(content),
		"checked":   false,
	}}
}

// BuildBlocks lays out the page body: content, summary, todos, then the
// research section when research ran.
func BuildBlocks(content, summary string, humanTodos []string, research *capturex.Research) []Block {
	blocks := []Block{
		paragraph(content),
		paragraph(summary),
		heading2("Todos"),
	}
	for _, t := range humanTodos {
		blocks = append(blocks, todo(t))
	}
	if research == nil {
		return blocks
	}
	blocks = append(blocks,
		heading2("Deep Research"),
		paragraph(research.ResearchSummary),
		heading3("Key takeaways"),
	)
	for _, k := range research.KeyTakeaways {
		blocks = append(blocks, bullet(k))
	}
	blocks = append(blocks, heading3("Sources"))
	for _, s := range research.Sources {
		blocks = append(blocks, bullet(s))
	}
	return blocks
}

// BuildProperties sets the title and, when both are known, the due date.
func BuildProperties(titleProp, title, dueProp, taskDate string) map[string]any {
	props := map[string]any{
		titleProp: map[string]any{"title": richText(title)},
	}
	if dueProp != "" && taskDate != "" {
		props[dueProp] = map[string]any{"date": map[string]any{"start": taskDate}}
	}
	return props
}
