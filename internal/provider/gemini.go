package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini describes products with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini describer. With an empty apiKey no client is
// built and Describe returns ErrMissingCredentials.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if apiKey == "" {
		return &Gemini{model: model}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Describe(ctx context.Context, p Prompt) (Result, error) {
	if g.client == nil {
		return Result{}, ErrMissingCredentials
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if p.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.System}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), cfg)
	if err != nil {
		return Result{}, &Error{Provider: "gemini", Message: "generate content", Err: err}
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Result{}, &Error{Provider: "gemini", Message: "empty completion"}
	}

	res := Result{Text: text, Provider: "gemini"}
	if resp.UsageMetadata != nil {
		res.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		res.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return res, nil
}
