package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/productpulse/pulse/internal/metrics"
	"github.com/productpulse/pulse/internal/product"
	"github.com/productpulse/pulse/internal/provider"
)

// Enricher merges retailer listings into products. An error means the
// retailer provider cannot serve any request and fails the page.
type Enricher interface {
	Enrich(ctx context.Context, products []product.Product) ([]product.Product, error)
}

// MediaChecker replaces unusable product media.
type MediaChecker interface {
	Ensure(ctx context.Context, products []product.Product) []product.Product
}

// Options tunes a single page request.
type Options struct {
	// ForceNovelty skips the cache read. The fresh result still replaces the
	// cached one.
	ForceNovelty bool
}

// Page is a generated response and whether it came from the cache.
type Page struct {
	Response product.GenerationResponse
	CacheHit bool
}

// Service runs the generation pipeline: describe, validate, sanitize,
// enrich, check media, cache.
type Service struct {
	describer provider.Describer
	enricher  Enricher
	media     MediaChecker
	cache     *ResponseCache
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds the pipeline. enricher and media may be nil, in which
// case those steps are skipped.
func NewService(d provider.Describer, enricher Enricher, media MediaChecker, rec metrics.Recorder) *Service {
	return &Service{
		describer: d,
		enricher:  enricher,
		media:     media,
		cache:     NewResponseCache(),
		metrics:   metrics.OrNop(rec),
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// RequestProductPage returns a product page for req, served from the cache
// when an identical request was answered before.
func (s *Service) RequestProductPage(ctx context.Context, req product.GenerationRequest, opts Options) (Page, error) {
	desired := ClampResults(req.ResultsRequested)
	req.ResultsRequested = desired
	fp := Fingerprint(req)

	if !opts.ForceNovelty {
		if resp, ok := s.cache.Get(fp); ok {
			s.metrics.Record("ai.cache_hit", map[string]any{"count": desired})
			return Page{Response: resp, CacheHit: true}, nil
		}
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	resp, err := s.generate(ctx, req, desired, logger)
	if err != nil {
		s.metrics.Record("ai.call_failed", map[string]any{"reason": err.Error()})
		logger.Warn("product generation failed", "error", err)
		return Page{}, err
	}

	s.cache.Put(fp, resp)
	s.metrics.Record("ai.call_success", map[string]any{"provider": resp.Debug.Provider, "count": len(resp.Products)})
	logger.Info("product page generated", "products", len(resp.Products), "force_novelty", opts.ForceNovelty)
	return Page{Response: resp, CacheHit: false}, nil
}

func (s *Service) generate(ctx context.Context, req product.GenerationRequest, desired int, logger *slog.Logger) (product.GenerationResponse, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return product.GenerationResponse{}, err
	}

	s.metrics.Record("ai.call_attempt", map[string]any{"count": desired})
	res, err := s.describer.Describe(ctx, prompt)
	if err != nil {
		if errors.Is(err, provider.ErrMissingCredentials) {
			s.metrics.Record("ai.call_skipped", map[string]any{"reason": "provider_missing"})
		}
		return product.GenerationResponse{}, fmt.Errorf("describing products: %w", err)
	}

	validated, err := decodeResponse(res.Text)
	if err != nil {
		logger.Warn("ai payload rejected", "error", err, "snippet", snippet(res.Text, 200))
		return product.GenerationResponse{}, err
	}
	s.metrics.Record("ai.response_size_bytes", map[string]any{"bytes": len(res.Text), "products": len(validated.Products)})
	if res.PromptTokens > 0 || res.CompletionTokens > 0 {
		s.metrics.Record("ai.token_usage", map[string]any{
			"promptTokens":     res.PromptTokens,
			"completionTokens": res.CompletionTokens,
			"provider":         res.Provider,
		})
	}

	san := sanitizer{metrics: s.metrics}
	products := validated.Products[:min(desired, len(validated.Products))]
	generatedAt := s.now().UTC().Format(time.RFC3339)
	for i, p := range products {
		p = san.product(p)
		if p.GeneratedAt == "" {
			p.GeneratedAt = generatedAt
		}
		products[i] = p
	}

	if s.enricher != nil {
		products, err = s.enricher.Enrich(ctx, products)
		if err != nil {
			return product.GenerationResponse{}, err
		}
	}
	if s.media != nil {
		products = s.media.Ensure(ctx, products)
	}
	if len(products) < desired {
		return product.GenerationResponse{}, fmt.Errorf("%w: got %d, want %d", ErrIncompleteResponse, len(products), desired)
	}

	return product.GenerationResponse{
		Products: products,
		Debug:    mergeDebug(validated.Debug, res),
	}, nil
}

// mergeDebug prefers what the model reported about itself and falls back to
// the transport's usage numbers.
func mergeDebug(reported *product.Debug, res provider.Result) *product.Debug {
	d := product.Debug{}
	if reported != nil {
		d = *reported
	}
	if d.Provider == "" {
		d.Provider = res.Provider
	}
	if d.PromptTokens == 0 {
		d.PromptTokens = res.PromptTokens
	}
	if d.CompletionTokens == 0 {
		d.CompletionTokens = res.CompletionTokens
	}
	return &d
}

// ClearProductCache drops every cached response.
func (s *Service) ClearProductCache() {
	s.cache.Clear()
}

// CachedResponses returns the number of cached responses.
func (s *Service) CachedResponses() int {
	return s.cache.Len()
}

// snippet returns at most n runes of s.
func snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
