package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/productpulse/pulse/internal/metrics"
)

const (
	defaultEndpoint = "https://serpapi.com/search.json"
	defaultTimeout  = 8 * time.Second
	defaultLabel    = "Retailer"
	userAgent       = "ProductPulseBot/1.0"
	maxErrorBody    = 512
)

// Options tunes a single FetchListings call.
type Options struct {
	// CanonicalKey is the cache key; the raw query is used when empty.
	CanonicalKey string
	// ForceRefresh skips the cache read. The result is still cached.
	ForceRefresh bool
}

// Client queries SerpAPI Google Shopping for retailer listings.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	cache      *Cache
	breaker    *gobreaker.CircuitBreaker[[]Listing]
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint points the client at a different search URL (for testing).
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a lookup client. An empty apiKey is allowed; every fetch
// then fails with ErrProviderUnavailable. cache and rec may be nil.
func NewClient(apiKey string, cache *Cache, rec metrics.Recorder, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
		cache:      cache,
		metrics:    metrics.OrNop(rec),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]Listing](gobreaker.Settings{
		Name:        "serpapi",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// An empty answer or a caller cancelling says nothing about provider health.
			return err == nil || errors.Is(err, ErrNoResults) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("retailer lookup breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// FetchListings returns up to limit listings for query, preserving provider
// order. Results are served from and written to the cache under
// opts.CanonicalKey (or query).
func (c *Client) FetchListings(ctx context.Context, query string, limit int, opts Options) ([]Listing, error) {
	if c.apiKey == "" {
		c.metrics.Record("ai.retailer_lookup_skipped", map[string]any{"reason": "serpapi_missing"})
		return nil, ErrProviderUnavailable
	}

	cacheKey := opts.CanonicalKey
	if cacheKey == "" {
		cacheKey = query
	}

	if c.cache != nil && !opts.ForceRefresh {
		if listings, ok := c.cache.Get(cacheKey); ok {
			c.metrics.Record("ai.retailer_cache_hit", map[string]any{"key": NormalizeKey(cacheKey)})
			return capListings(listings, limit), nil
		}
	}

	listings, err := c.breaker.Execute(func() ([]Listing, error) {
		return c.search(ctx, query)
	})
	if err != nil {
		c.metrics.Record("ai.retailer_lookup_failed", map[string]any{"reason": failureReason(err)})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("retailer lookup suspended: %w", err)
		}
		return nil, err
	}

	if c.cache != nil {
		c.cache.Put(cacheKey, listings)
	}
	listings = capListings(listings, limit)
	c.metrics.Record("ai.retailer_lookup_success", map[string]any{"count": len(listings)})
	return listings, nil
}

func (c *Client) search(ctx context.Context, query string) ([]Listing, error) {
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)
	params.Set("hl", "en")
	params.Set("gl", "us")
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retailer search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		ShoppingResults []json.RawMessage `json:"shopping_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding retailer search response: %w", err)
	}

	listings := parseListings(payload.ShoppingResults)
	if len(listings) == 0 {
		return nil, ErrNoResults
	}
	return listings, nil
}

type shoppingResult struct {
	Store    string `json:"store"`
	Source   string `json:"source"`
	Link     string `json:"link"`
	Price    string `json:"price"`
	Shipping string `json:"shipping"`
}

// parseListings drops malformed entries: non-objects and entries without an
// absolute http(s) link.
func parseListings(raw []json.RawMessage) []Listing {
	listings := make([]Listing, 0, len(raw))
	for _, r := range raw {
		var sr shoppingResult
		if err := json.Unmarshal(r, &sr); err != nil {
			continue
		}
		if !isHTTPURL(sr.Link) {
			continue
		}
		label := strings.TrimSpace(sr.Store)
		if label == "" {
			label = strings.TrimSpace(sr.Source)
		}
		if label == "" {
			label = defaultLabel
		}
		listings = append(listings, Listing{
			Label:     label,
			URL:       sr.Link,
			PriceHint: strings.TrimSpace(sr.Price),
			Trusted:   strings.Contains(strings.ToLower(sr.Shipping), "free"),
		})
	}
	return listings
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func capListings(listings []Listing, limit int) []Listing {
	if limit > 0 && len(listings) > limit {
		return listings[:limit]
	}
	return listings
}

func failureReason(err error) string {
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		return fmt.Sprintf("serpapi_%d", pe.StatusCode)
	case errors.Is(err, ErrNoResults):
		return "serpapi_no_results"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "request_failed"
	}
}
