package provider

import (
	"context"
	"errors"
	"testing"
)

func TestGemini_MissingKey(t *testing.T) {
	g, err := NewGemini(context.Background(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.model != DefaultGeminiModel {
		t.Errorf("model = %q, want %q", g.model, DefaultGeminiModel)
	}

	_, err = g.Describe(context.Background(), Prompt{System: "s", User: "u"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestGemini_KeepsExplicitModel(t *testing.T) {
	g, err := NewGemini(context.Background(), "", "gemini-1.5-pro")
	if err != nil {
		t.Fatal(err)
	}
	if g.model != "gemini-1.5-pro" {
		t.Errorf("model = %q", g.model)
	}
}
