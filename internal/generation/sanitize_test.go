package generation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/productpulse/pulse/internal/product"
)

type countingRecorder struct{ events map[string]int }

func (r *countingRecorder) Record(event string, _ map[string]any) {
	if r.events == nil {
		r.events = make(map[string]int)
	}
	r.events[event]++
}

func TestSanitizer_ClampsAndDefaults(t *testing.T) {
	rec := &countingRecorder{}
	s := sanitizer{metrics: rec}

	p := product.Product{
		Summary:      strings.Repeat("s", 400),
		WhatItIs:     "short",
		Pros:         []string{"1", "2", "3", "4", "5", "6", strings.Repeat("p", 10)},
		Cons:         []string{strings.Repeat("c", 200)},
		Tags:         make([]product.Tag, 10),
		BuyLinks:     make([]product.BuyLink, 6),
		NoveltyScore: 0.876,
		MediaURL:     "/relative.png",
	}
	got := s.product(p)

	if n := utf8.RuneCountInString(got.Summary); n != maxCopyChars+1 || !strings.HasSuffix(got.Summary, ellipsis) {
		t.Errorf("summary not clamped: %d runes", n)
	}
	if got.WhatItIs != "short" {
		t.Errorf("WhatItIs = %q", got.WhatItIs)
	}
	if len(got.Pros) != maxProsCons || len(got.Tags) != maxTags || len(got.BuyLinks) != maxBuyLinks {
		t.Errorf("lists not limited: pros=%d tags=%d links=%d", len(got.Pros), len(got.Tags), len(got.BuyLinks))
	}
	if utf8.RuneCountInString(got.Cons[0]) != maxListItemChars+1 {
		t.Errorf("con not clamped: %d", utf8.RuneCountInString(got.Cons[0]))
	}
	if got.NoveltyScore != 0.88 {
		t.Errorf("NoveltyScore = %v, want 0.88", got.NoveltyScore)
	}
	if got.MediaURL != "" {
		t.Errorf("MediaURL = %q, want dropped", got.MediaURL)
	}
	if got.RetailLookupConfidence == nil || *got.RetailLookupConfidence != defaultConfidence {
		t.Errorf("confidence = %v, want default", got.RetailLookupConfidence)
	}
	// summary, pros, tags, buyLinks, cons[0]
	if rec.events["ai.payload_clamped"] != 5 {
		t.Errorf("clamp events = %d, want 5", rec.events["ai.payload_clamped"])
	}
	if len(p.Pros) != 7 {
		t.Error("input mutated")
	}
}

func TestSanitizer_RoundsConfidence(t *testing.T) {
	c := 1.7
	got := sanitizer{metrics: &countingRecorder{}}.product(product.Product{RetailLookupConfidence: &c})
	if *got.RetailLookupConfidence != 1 {
		t.Errorf("confidence = %v, want 1", *got.RetailLookupConfidence)
	}
	if c != 1.7 {
		t.Error("input confidence mutated")
	}
}

func TestDecodeResponse_StripsFences(t *testing.T) {
	text := "Here you go:\n```json\n" + validPayload(t, 2) + "\n```"
	resp, err := decodeResponse(text)
	if err != nil {
		t.Fatalf("decodeResponse: %v", err)
	}
	if len(resp.Products) != 2 {
		t.Errorf("products = %d", len(resp.Products))
	}
}

func TestDecodeResponse_Invalid(t *testing.T) {
	for _, text := range []string{"no json here", `{"products": "nope"}`, `{"products": []}`} {
		_, err := decodeResponse(text)
		var ve *ValidationError
		if !asValidation(err, &ve) {
			t.Errorf("decodeResponse(%q) err = %v, want *ValidationError", text, err)
		}
	}
}
