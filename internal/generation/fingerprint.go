// Package generation turns feed requests into validated, enriched product
// pages and caches the results by request fingerprint.
package generation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/productpulse/pulse/internal/product"
)

const (
	minResults     = 2
	maxResults     = 4
	defaultResults = 2
)

// ClampResults bounds a requested product count to [2, 4]; zero means the
// default of 2.
func ClampResults(n int) int {
	if n == 0 {
		return defaultResults
	}
	return max(minResults, min(maxResults, n))
}

type fingerprintInput struct {
	Preferences      product.Preferences `json:"preferences"`
	SearchTerms      []string            `json:"searchTerms"`
	LastViewed       []string            `json:"lastViewed"`
	ResultsRequested int                 `json:"resultsRequested"`
}

// Fingerprint hashes the parts of req that determine its answer. Map keys
// are sorted by the encoder and last-viewed ids are sorted explicitly, so
// logically equal requests share a fingerprint. Session and user ids are
// not part of it.
func Fingerprint(req product.GenerationRequest) string {
	ids := make([]string, 0, len(req.LastViewed))
	for _, p := range req.LastViewed {
		ids = append(ids, p.ID)
	}
	slices.Sort(ids)

	prefs := req.Preferences
	in := fingerprintInput{
		Preferences: product.Preferences{
			LikedTags:        orEmpty(prefs.LikedTags),
			DislikedTags:     orEmpty(prefs.DislikedTags),
			BlacklistedItems: orEmpty(prefs.BlacklistedItems),
			TagWeights:       prefs.TagWeights,
		},
		SearchTerms:      orEmpty(req.SearchTerms),
		LastViewed:       ids,
		ResultsRequested: ClampResults(req.ResultsRequested),
	}
	if in.Preferences.TagWeights == nil {
		in.Preferences.TagWeights = map[string]float64{}
	}

	// Marshaling plain strings, ints and a string-keyed float map cannot fail.
	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
