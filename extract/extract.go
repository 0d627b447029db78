// Package extract pulls a single JSON object out of free-form text returned by a
// generative model. Each strategy is tried in order and the first success wins.
// Extraction only guarantees well-formed JSON; schema validation is the caller's job.
package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy attempts to find a JSON object in text.
type Strategy interface {
	Name() string
	Extract(text string) (json.RawMessage, bool)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc struct {
	Label string
	Fn    func(text string) (json.RawMessage, bool)
}

func (s StrategyFunc) Name() string { return s.Label }

func (s StrategyFunc) Extract(text string) (json.RawMessage, bool) { return s.Fn(text) }

var (
	fencedRe = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")
	bracesRe = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// Whole parses the entire trimmed text.
var Whole Strategy = StrategyFunc{Label: "whole", Fn: func(text string) (json.RawMessage, bool) {
	return object(strings.TrimSpace(text))
}}

// Fenced parses the content of the first ``` or ```json code block.
var Fenced Strategy = StrategyFunc{Label: "fenced", Fn: func(text string) (json.RawMessage, bool) {
	m := fencedRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return object(m[1])
}}

// Braces parses the first brace-delimited substring, allowing one level of nesting.
var Braces Strategy = StrategyFunc{Label: "braces", Fn: func(text string) (json.RawMessage, bool) {
	m := bracesRe.FindString(text)
	if m == "" {
		return nil, false
	}
	return object(m)
}}

// Chain is an ordered list of strategies.
type Chain []Strategy

// Default is whole text, then fenced block, then first brace block.
var Default = Chain{Whole, Fenced, Braces}

// Extract returns the first object any strategy finds and the strategy's name.
func (c Chain) Extract(text string) (json.RawMessage, string, bool) {
	for _, s := range c {
		if raw, ok := s.Extract(text); ok {
			return raw, s.Name(), true
		}
	}
	return nil, "", false
}

// Object runs the Default chain.
func Object(text string) (json.RawMessage, bool) {
	raw, _, ok := Default.Extract(text)
	return raw, ok
}

// object accepts s only when it is exactly one JSON object.
func object(s string) (json.RawMessage, bool) {
	b := []byte(strings.TrimSpace(s))
	if len(b) == 0 || b[0] != '{' || !json.Valid(b) {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return nil, false
	}
	return json.RawMessage(buf.Bytes()), true
}
