// Package catalog looks up real retailer listings for product descriptions
// and caches the results.
package catalog

import (
	"errors"
	"fmt"
)

// Listing is one retailer offer returned by the shopping search provider.
// Listings are treated as immutable once cached.
type Listing struct {
	Label     string `json:"label"`
	URL       string `json:"url"`
	PriceHint string `json:"priceHint,omitempty"`
	Trusted   bool   `json:"trusted"`
}

// ErrProviderUnavailable is returned when the search provider has no
// credentials configured. It is a configuration problem, not a transient one.
var ErrProviderUnavailable = errors.New("retailer search provider not configured")

// ErrNoResults is returned when the provider answered but no usable listing
// remained after filtering.
var ErrNoResults = errors.New("retailer search returned no usable listings")

// ProviderError reports a non-2xx answer from the search provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("retailer search: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("retailer search: unexpected status %d: %s", e.StatusCode, e.Body)
}
