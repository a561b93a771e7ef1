// Package provider talks to the AI models that write product descriptions.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned when no API key is configured for the
// selected backend.
var ErrMissingCredentials = errors.New("ai provider credentials missing")

// Prompt is a single structured-output request.
type Prompt struct {
	System     string
	User       string
	SchemaName string
	// Schema is a JSON Schema for the expected output. Optional.
	Schema json.RawMessage
}

// Result is the raw model output plus token usage.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Provider         string
}

// Describer produces JSON text for a prompt.
type Describer interface {
	Describe(ctx context.Context, p Prompt) (Result, error)
}

// Error is a transient failure talking to the provider.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }
