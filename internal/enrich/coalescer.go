package enrich

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/productpulse/pulse/internal/catalog"
)

// Fetcher performs a (possibly cached) retailer lookup.
type Fetcher interface {
	FetchListings(ctx context.Context, query string, limit int, opts catalog.Options) ([]catalog.Listing, error)
}

// Coalescer guarantees at most one in-flight lookup per canonical key.
// Concurrent callers for the same key share the outcome of the first call.
type Coalescer struct {
	fetcher Fetcher
	hits    *HotQueryHits
	timeout time.Duration
	group   singleflight.Group
}

func NewCoalescer(fetcher Fetcher, hits *HotQueryHits, timeout time.Duration) *Coalescer {
	if hits == nil {
		hits = NewHotQueryHits()
	}
	return &Coalescer{fetcher: fetcher, hits: hits, timeout: timeout}
}

// Resolve returns listings for key, joining an in-flight lookup when one
// exists. The shared lookup does not inherit the first caller's
// cancellation; it is bounded by the coalescer timeout instead. A caller
// whose ctx ends stops waiting without affecting the others.
func (c *Coalescer) Resolve(ctx context.Context, key, query string, limit int) ([]catalog.Listing, error) {
	key = catalog.NormalizeKey(key)
	ch := c.group.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, c.timeout)
			defer cancel()
		}
		listings, err := c.fetcher.FetchListings(fctx, query, limit, catalog.Options{CanonicalKey: key})
		if err != nil {
			return nil, err
		}
		c.hits.Increment(key)
		return listings, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]catalog.Listing)), nil
	}
}
