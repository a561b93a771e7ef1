package generation

import (
	"math"
	"strconv"
	"strings"

	"github.com/productpulse/pulse/internal/metrics"
	"github.com/productpulse/pulse/internal/product"
)

const (
	maxCopyChars      = 320
	maxListItemChars  = 160
	maxProsCons       = 5
	maxTags           = 8
	maxBuyLinks       = 4
	defaultConfidence = 0.55
	ellipsis          = "…"
)

// sanitizer bounds model output and reports every clamp.
type sanitizer struct {
	metrics metrics.Recorder
}

func (s sanitizer) trackClamp(field string, before, after int) {
	if before <= after {
		return
	}
	s.metrics.Record("ai.payload_clamped", map[string]any{
		"field":    field,
		"before":   before,
		"after":    after,
		"overflow": before - after,
	})
}

func (s sanitizer) clampText(value string, limit int, field string) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	s.trackClamp(field, len(runes), limit)
	return string(runes[:limit]) + ellipsis
}

func limitSlice[T any](s sanitizer, items []T, limit int, field string) []T {
	if len(items) <= limit {
		return items
	}
	s.trackClamp(field, len(items), limit)
	return items[:limit]
}

func (s sanitizer) clampTexts(items []string, field string) []string {
	items = limitSlice(s, items, maxProsCons, field)
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = s.clampText(item, maxListItemChars, field+"["+strconv.Itoa(i)+"]")
	}
	return out
}

// product returns a bounded copy of p.
func (s sanitizer) product(p product.Product) product.Product {
	p = p.Clone()
	p.Summary = s.clampText(p.Summary, maxCopyChars, "summary")
	p.WhatItIs = s.clampText(p.WhatItIs, maxCopyChars, "whatItIs")
	p.WhyUseful = s.clampText(p.WhyUseful, maxCopyChars, "whyUseful")
	p.Pros = s.clampTexts(p.Pros, "pros")
	p.Cons = s.clampTexts(p.Cons, "cons")
	p.Tags = limitSlice(s, p.Tags, maxTags, "tags")
	p.BuyLinks = limitSlice(s, p.BuyLinks, maxBuyLinks, "buyLinks")
	p.NoveltyScore = math.Round(clamp01(p.NoveltyScore)*100) / 100
	if !strings.HasPrefix(p.MediaURL, "http") {
		p.MediaURL = ""
	}
	conf := defaultConfidence
	if p.RetailLookupConfidence != nil && !math.IsNaN(*p.RetailLookupConfidence) {
		conf = math.Round(clamp01(*p.RetailLookupConfidence)*1000) / 1000
	}
	p.RetailLookupConfidence = &conf
	return p
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
