package enrich

import (
	"math"
	"regexp"
	"strings"

	"github.com/productpulse/pulse/internal/product"
)

const (
	// DefaultConfidence is the starting score when a product carries none.
	DefaultConfidence = 0.55
	// DefaultThreshold is the minimum confidence that earns a lookup.
	DefaultThreshold = 0.45

	highNoveltyCutoff  = 0.75
	highNoveltyPenalty = 0.25
	speculativePenalty = 0.20
	noLinksBonus       = 0.12
	trustedLinkPenalty = 0.05
	richKeyBonus       = 0.05
	richKeyTokens      = 3
	reuseBonusPerHit   = 0.02
	maxReuseBonus      = 0.15
)

var speculativePattern = regexp.MustCompile(`(?i)concept|prototype|beta|waitlist|exclusive`)

// Confidence estimates how likely a retailer lookup for p is to find a real
// listing. hits is the number of times key has been resolved before.
func Confidence(p product.Product, key string, hits int) float64 {
	if key == "" {
		return 0
	}

	score := DefaultConfidence
	if p.RetailLookupConfidence != nil {
		score = *p.RetailLookupConfidence
	}

	if p.NoveltyScore >= highNoveltyCutoff {
		score -= highNoveltyPenalty
	}
	text := strings.Join([]string{p.Title, p.Summary, p.WhatItIs, p.WhyUseful}, " ")
	if speculativePattern.MatchString(text) {
		score -= speculativePenalty
	}
	if len(p.BuyLinks) == 0 {
		score += noLinksBonus
	} else if hasTrustedLink(p.BuyLinks) {
		score -= trustedLinkPenalty
	}
	if len(strings.Fields(key)) >= richKeyTokens {
		score += richKeyBonus
	}
	if hits > 0 {
		score += math.Min(maxReuseBonus, float64(hits)*reuseBonusPerHit)
	}

	return round3(clamp01(score))
}

func hasTrustedLink(links []product.BuyLink) bool {
	for _, l := range links {
		if l.Trusted {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
