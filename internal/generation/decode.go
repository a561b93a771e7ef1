package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/productpulse/pulse/internal/product"
)

// ErrIncompleteResponse is returned when fewer products than requested
// survive the pipeline.
var ErrIncompleteResponse = errors.New("ai payload missing product entries")

// ValidationError reports model output that could not be decoded or did not
// satisfy the response schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "ai payload invalid: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// decodeResponse extracts the JSON object from model text and validates it.
// Models sometimes wrap JSON in markdown code fences or add filler, so the
// outermost braces are located before decoding.
func decodeResponse(text string) (product.GenerationResponse, error) {
	s := strings.TrimSpace(text)
	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return product.GenerationResponse{}, &ValidationError{Err: errors.New("no JSON object in response")}
	}

	var resp product.GenerationResponse
	if err := json.Unmarshal([]byte(s[start:end+1]), &resp); err != nil {
		return product.GenerationResponse{}, &ValidationError{Err: fmt.Errorf("decoding: %w", err)}
	}
	if err := product.Validate(resp); err != nil {
		return product.GenerationResponse{}, &ValidationError{Err: err}
	}
	return resp, nil
}
