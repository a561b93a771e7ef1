package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
	maxErrorBody   = 1024
)

// OpenAI calls an OpenAI-compatible chat completions endpoint with a JSON
// schema response format.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	backoff    time.Duration
}

// NewOpenAI creates a client. Empty baseURL and model fall back to defaults.
// An empty apiKey is allowed; Describe then returns ErrMissingCredentials.
func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    normalizeBaseURL(baseURL),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		backoff:    initialBackoff,
	}
}

// normalizeBaseURL accepts either an API root or a full endpoint URL.
func normalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return defaultBaseURL
	}
	for _, suffix := range []string{"/chat/completions", "/responses"} {
		u = strings.TrimSuffix(u, suffix)
	}
	return u
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Describe sends the prompt, retrying with exponential backoff on HTTP 429.
func (c *OpenAI) Describe(ctx context.Context, p Prompt) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrMissingCredentials
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	if len(p.Schema) > 0 {
		name := p.SchemaName
		if name == "" {
			name = "response"
		}
		req.ResponseFormat = responseFormat{Type: "json_schema", JSONSchema: &jsonSchemaFormat{Name: name, Schema: p.Schema}}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		res, err := c.do(ctx, body)
		if err == nil {
			return res, nil
		}
		if !isRateLimit(err) {
			return Result{}, err
		}
		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return Result{}, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func isRateLimit(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests
}

func (c *OpenAI) do(ctx context.Context, body []byte) (Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, &Error{Provider: "openai", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, &Error{Provider: "openai", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Result{}, &Error{Provider: "openai", Message: "decoding response", Err: err}
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return Result{}, &Error{Provider: "openai", Message: "empty completion"}
	}
	return Result{
		Text:             cr.Choices[0].Message.Content,
		PromptTokens:     cr.Usage.PromptTokens,
		CompletionTokens: cr.Usage.CompletionTokens,
		Provider:         "openai",
	}, nil
}
