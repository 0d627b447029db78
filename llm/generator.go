// Package llm implements the planning and research stages on top of a
// generative text service. Responses are free-form text; each stage extracts a
// JSON object, validates it against the stage schema and, if either step
// fails, asks the model once to repair its own output.
package llm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Request is one generation call.
type Request struct {
	Model        string
	Instructions string // system instruction
	Input        string
	WebSearch    bool // enable the provider's web search tool
}

// Generator returns the text of a single model response.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GenAIConfig configures NewGenAIGenerator.
type GenAIConfig struct {
	APIKey string
	// RateLimit caps requests per second across every stage sharing the
	// generator. Zero disables limiting.
	RateLimit rate.Limit
	Burst     int
}

// GenAIGenerator calls the Gemini API through google.golang.org/genai.
type GenAIGenerator struct {
	client  *genai.Client
	limiter *rate.Limiter
}

func NewGenAIGenerator(ctx context.Context, cfg GenAIConfig) (*GenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g := &GenAIGenerator{client: client}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}
	return g, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	config := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if req.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Input), config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// apiStatus extracts the HTTP status from a genai API error.
func apiStatus(err error) (int, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, true
	}
	return 0, false
}
