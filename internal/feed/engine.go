// Package feed updates a user's taste profile from swipe interactions and
// orders candidate products for the queue.
package feed

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/productpulse/pulse/internal/product"
)

// Interaction is a user reaction to a product card.
type Interaction string

const (
	Liked    Interaction = "liked"
	Disliked Interaction = "disliked"
	Reported Interaction = "reported"
	Viewed   Interaction = "viewed"
)

const (
	minWeight   = -1.0
	maxWeight   = 2.0
	searchBoost = 0.35
)

var (
	searchSplit = regexp.MustCompile(`[,\s]+`)
	nonKeyChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)
)

// ParseInteraction validates an interaction name.
func ParseInteraction(s string) (Interaction, error) {
	switch i := Interaction(strings.ToLower(strings.TrimSpace(s))); i {
	case Liked, Disliked, Reported, Viewed:
		return i, nil
	}
	return "", fmt.Errorf("unknown interaction %q", s)
}

func (i Interaction) delta() float64 {
	switch i {
	case Liked:
		return 0.2
	case Disliked:
		return -0.3
	case Reported:
		return -1
	default:
		return 0.05
	}
}

// AdjustWeights returns prefs updated for an interaction with p. Every tag
// on p shifts by the interaction's delta within [-1, 2]; likes and dislikes
// also record the tags, and reports blacklist the product.
func AdjustWeights(prefs product.Preferences, p product.Product, interaction Interaction) product.Preferences {
	updated := prefs.Clone()
	if updated.TagWeights == nil {
		updated.TagWeights = make(map[string]float64)
	}

	d := interaction.delta()
	for _, tag := range p.Tags {
		next := clamp(updated.TagWeights[tag.ID]+d, minWeight, maxWeight)
		updated.TagWeights[tag.ID] = math.Round(next*1000) / 1000
	}

	switch interaction {
	case Liked:
		for _, tag := range p.Tags {
			updated.LikedTags = appendUnique(updated.LikedTags, tag.ID)
		}
	case Disliked:
		for _, tag := range p.Tags {
			updated.DislikedTags = appendUnique(updated.DislikedTags, tag.ID)
		}
	case Reported:
		updated.BlacklistedItems = appendUnique(updated.BlacklistedItems, p.ID)
	}
	return updated
}

// ScoreForQueue sums the user's weights for p's tags.
func ScoreForQueue(p product.Product, prefs product.Preferences) float64 {
	var score float64
	for _, tag := range p.Tags {
		score += prefs.TagWeights[tag.ID]
	}
	return score
}

// DedupeProducts drops blacklisted products and repeated ids, keeping the
// first occurrence.
func DedupeProducts(products []product.Product, blacklist []string) []product.Product {
	seen := make(map[string]struct{}, len(products))
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if slices.Contains(blacklist, p.ID) {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// RankForQueue removes blacklisted and duplicate products and orders the
// rest by descending queue score. Ties keep their input order.
func RankForQueue(products []product.Product, prefs product.Preferences) []product.Product {
	out := DedupeProducts(products, prefs.BlacklistedItems)
	slices.SortStableFunc(out, func(a, b product.Product) int {
		sa, sb := ScoreForQueue(a, prefs), ScoreForQueue(b, prefs)
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return 0
	})
	return out
}

// DeriveSearchTerms splits free text on commas and whitespace into
// lowercase terms.
func DeriveSearchTerms(text string) []string {
	var terms []string
	for _, chunk := range searchSplit.Split(text, -1) {
		if c := strings.ToLower(strings.TrimSpace(chunk)); c != "" {
			terms = append(terms, c)
		}
	}
	return terms
}

// MergeSearchIntoPreferences boosts a weight per search term.
func MergeSearchIntoPreferences(prefs product.Preferences, terms []string) product.Preferences {
	merged := prefs.Clone()
	if merged.TagWeights == nil {
		merged.TagWeights = make(map[string]float64)
	}
	for _, term := range terms {
		key := nonKeyChars.ReplaceAllString(term, "-")
		merged.TagWeights[key] = clamp(merged.TagWeights[key]+searchBoost, minWeight, maxWeight)
	}
	return merged
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
