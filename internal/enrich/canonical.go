// Package enrich matches AI-described products to retailer listings.
package enrich

import (
	"strings"
	"unicode"

	"github.com/productpulse/pulse/internal/product"
)

const (
	maxKeyTokens   = 16
	maxQueryTokens = 12
	querySuffix    = " buy online"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "for": {}, "with": {},
	"to": {}, "in": {}, "on": {}, "by": {}, "at": {}, "from": {}, "is": {}, "it": {},
	"its": {}, "this": {}, "that": {}, "your": {}, "you": {}, "our": {}, "into": {},
	"buy": {}, "online": {}, "shop": {}, "shopping": {}, "store": {}, "sale": {},
	"deal": {}, "deals": {}, "price": {}, "best": {}, "new": {}, "cheap": {},
	"free": {}, "shipping": {}, "product": {}, "products": {}, "item": {}, "items": {},
}

// tokenize lowercases text, replaces non-alphanumerics with spaces and splits
// on whitespace.
func tokenize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(mapped)
}

// CanonicalKey derives a normalized search key for p from its title,
// description and tag labels. Products describing the same item map to the
// same key. An empty key means the product has nothing searchable.
func CanonicalKey(p product.Product) string {
	parts := []string{p.Title, p.WhatItIs, p.Summary}
	for _, t := range p.Tags {
		parts = append(parts, t.Label)
	}

	seen := make(map[string]struct{})
	tokens := make([]string, 0, maxKeyTokens)
	for _, part := range parts {
		for _, tok := range tokenize(part) {
			if _, stop := stopWords[tok]; stop {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
			if len(tokens) == maxKeyTokens {
				return strings.Join(tokens, " ")
			}
		}
	}
	return strings.Join(tokens, " ")
}

// LookupQuery builds the retailer search query for a canonical key, falling
// back to the product title when the key is empty.
func LookupQuery(key, title string) string {
	tokens := strings.Fields(key)
	if len(tokens) > 0 {
		if len(tokens) > maxQueryTokens {
			tokens = tokens[:maxQueryTokens]
		}
		return strings.Join(tokens, " ") + querySuffix
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	return title + querySuffix
}
