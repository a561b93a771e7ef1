// Package media checks that product images are reachable and substitutes a
// stable placeholder when they are not.
package media

import (
	"strings"
	"unicode/utf16"

	"github.com/productpulse/pulse/internal/product"
)

var placeholders = []string{
	"/media/placeholders/aurora.svg",
	"/media/placeholders/circuit.svg",
	"/media/placeholders/sunrise.svg",
}

// Placeholder picks a placeholder image for p. The same title and tags
// always yield the same image.
func Placeholder(p product.Product) string {
	parts := make([]string, 0, len(p.Tags)+1)
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	for _, t := range p.Tags {
		if t.Label != "" {
			parts = append(parts, t.Label)
		}
	}
	seed := strings.Join(parts, "|")
	if seed == "" {
		seed = "product"
	}
	return placeholders[hashSeed(seed)%int64(len(placeholders))]
}

// hashSeed is the 31-multiplier string hash over UTF-16 code units with
// 32-bit wraparound, returned as a non-negative value.
func hashSeed(s string) int64 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(u)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
