package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/productpulse/pulse/internal/catalog"
	"github.com/productpulse/pulse/internal/metrics"
	"github.com/productpulse/pulse/internal/product"
)

const (
	DefaultMaxLinks    = 4
	DefaultTimeout     = 8 * time.Second
	defaultConcurrency = 4
)

// Config tunes the orchestrator.
type Config struct {
	// Threshold is the minimum confidence for a lookup.
	Threshold float64
	// Budget caps lookups per call. Zero means one per product.
	Budget int
	// MaxLinks caps both the listings requested per lookup and the buy links
	// kept on an enriched product.
	MaxLinks int
	// Timeout bounds each shared lookup.
	Timeout time.Duration
	// Concurrency bounds parallel lookups within one call.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		MaxLinks:    DefaultMaxLinks,
		Timeout:     DefaultTimeout,
		Concurrency: defaultConcurrency,
	}
}

// Candidate is a product chosen for a retailer lookup.
type Candidate struct {
	Index        int     `json:"index"`
	ProductID    string  `json:"productId"`
	CanonicalKey string  `json:"canonicalKey"`
	Query        string  `json:"query"`
	Confidence   float64 `json:"confidence"`
}

// Stats reports orchestrator cache state.
type Stats struct {
	Cache   catalog.CacheStats `json:"cache"`
	HotKeys int                `json:"hotKeys"`
}

// Service owns the lookup cache, hot-key counters and coalescer, and merges
// retailer listings into generated products.
type Service struct {
	cfg       Config
	cache     *catalog.Cache
	hits      *HotQueryHits
	coalescer *Coalescer
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewService wires an orchestrator around fetcher. cache is the same cache
// the fetcher reads and writes; the service only clears and reports on it.
func NewService(fetcher Fetcher, cache *catalog.Cache, rec metrics.Recorder, cfg Config) *Service {
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = DefaultMaxLinks
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	hits := NewHotQueryHits()
	return &Service{
		cfg:       cfg,
		cache:     cache,
		hits:      hits,
		coalescer: NewCoalescer(fetcher, hits, cfg.Timeout),
		metrics:   metrics.OrNop(rec),
		logger:    slog.Default(),
	}
}

// Candidates scores products and returns the eligible ones ordered by
// descending confidence, ties kept in input order. No budget is applied.
func (s *Service) Candidates(products []product.Product) []Candidate {
	var out []Candidate
	for i, p := range products {
		key := CanonicalKey(p)
		conf := Confidence(p, key, s.hits.Get(key))
		s.metrics.Record("ai.retailer_lookup_confidence", map[string]any{
			"productId":  p.ID,
			"confidence": conf,
			"threshold":  s.cfg.Threshold,
		})
		if key == "" || conf < s.cfg.Threshold {
			continue
		}
		out = append(out, Candidate{
			Index:        i,
			ProductID:    p.ID,
			CanonicalKey: key,
			Query:        LookupQuery(key, p.Title),
			Confidence:   conf,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

type lookupGroup struct {
	key      string
	query    string
	indices  []int
	listings []catalog.Listing
	err      error
}

// Enrich returns copies of products with retailer listings merged into their
// buy links. The input slice is not modified and the output keeps its order
// and length. A failed lookup leaves the affected products unchanged, except
// catalog.ErrProviderUnavailable, which is returned since no later request
// can succeed either.
func (s *Service) Enrich(ctx context.Context, products []product.Product) ([]product.Product, error) {
	out := make([]product.Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}

	candidates := s.Candidates(products)
	budget := s.cfg.Budget
	if budget <= 0 {
		budget = len(products)
	}
	if len(candidates) > budget {
		s.metrics.Record("ai.retailer_lookup_budget_exceeded", map[string]any{
			"eligible": len(candidates),
			"budget":   budget,
		})
		s.logger.Warn("retailer lookup budget exceeded", "eligible", len(candidates), "budget", budget)
		candidates = candidates[:budget]
	}
	if len(candidates) == 0 {
		return out, nil
	}

	var groups []*lookupGroup
	byKey := make(map[string]*lookupGroup)
	for _, c := range candidates {
		g, ok := byKey[c.CanonicalKey]
		if !ok {
			g = &lookupGroup{key: c.CanonicalKey, query: c.Query}
			byKey[c.CanonicalKey] = g
			groups = append(groups, g)
		}
		g.indices = append(g.indices, c.Index)
	}

	var eg errgroup.Group
	eg.SetLimit(s.cfg.Concurrency)
	for _, g := range groups {
		eg.Go(func() error {
			g.listings, g.err = s.coalescer.Resolve(ctx, g.key, g.query, s.cfg.MaxLinks)
			return nil
		})
	}
	eg.Wait()

	failed := 0
	var fatal error
	for _, g := range groups {
		if g.err != nil {
			failed++
			s.recordFailure(g)
			if fatal == nil && errors.Is(g.err, catalog.ErrProviderUnavailable) {
				fatal = g.err
			}
			continue
		}
		for _, idx := range g.indices {
			out[idx] = mergeListings(out[idx], g.listings, s.cfg.MaxLinks)
		}
	}
	s.metrics.Record("ai.retailer_enrich_completed", map[string]any{
		"groups": len(groups),
		"failed": failed,
	})
	if fatal != nil {
		return nil, fmt.Errorf("enriching products: %w", fatal)
	}
	return out, nil
}

func (s *Service) recordFailure(g *lookupGroup) {
	reason := "lookup_failed"
	switch {
	case errors.Is(g.err, catalog.ErrProviderUnavailable):
		reason = "provider_unavailable"
	case errors.Is(g.err, catalog.ErrNoResults):
		reason = "no_results"
	case errors.Is(g.err, context.DeadlineExceeded), errors.Is(g.err, context.Canceled):
		reason = "timeout"
	}
	s.metrics.Record("ai.retailer_enrich_failed", map[string]any{"reason": reason, "key": g.key})
	s.logger.Warn("retailer enrichment failed", "key", g.key, "products", len(g.indices), "error", g.err)
}

// mergeListings prepends listings to p's buy links, dropping duplicate URLs
// (case-insensitive) and capping the result at maxLinks.
func mergeListings(p product.Product, listings []catalog.Listing, maxLinks int) product.Product {
	if len(listings) == 0 {
		return p
	}
	merged := make([]product.BuyLink, 0, len(listings)+len(p.BuyLinks))
	seen := make(map[string]struct{})
	add := func(l product.BuyLink) {
		k := strings.ToLower(strings.TrimSpace(l.URL))
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		merged = append(merged, l)
	}
	for _, l := range listings {
		add(product.BuyLink{Label: l.Label, URL: l.URL, PriceHint: l.PriceHint, Trusted: l.Trusted})
	}
	for _, l := range p.BuyLinks {
		add(l)
	}
	if maxLinks > 0 && len(merged) > maxLinks {
		merged = merged[:maxLinks]
	}
	p.BuyLinks = merged
	if p.Source == product.SourceAI {
		p.Source = product.SourceHybrid
	}
	return p
}

// ClearRetailerCache drops cached listings and hot-key counters.
func (s *Service) ClearRetailerCache() {
	if s.cache != nil {
		s.cache.Clear()
	}
	s.hits.Reset()
}

func (s *Service) Stats() Stats {
	st := Stats{HotKeys: s.hits.Len()}
	if s.cache != nil {
		st.Cache = s.cache.Stats()
	}
	return st
}

// RunSweeper removes expired cache entries every interval until ctx ends.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.cache == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.cache.Sweep(); n > 0 {
				s.logger.Debug("swept expired retailer cache entries", "removed", n)
			}
		}
	}
}
