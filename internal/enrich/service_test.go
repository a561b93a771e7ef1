package enrich

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/productpulse/pulse/internal/catalog"
	"github.com/productpulse/pulse/internal/product"
)

func testProduct(id, title string) product.Product {
	return product.Product{
		ID:           id,
		Title:        title,
		Summary:      title,
		Pros:         []string{"a", "b"},
		Cons:         []string{"c"},
		NoveltyScore: 0.3,
		Source:       product.SourceAI,
	}
}

func mustEnrich(t *testing.T, svc *Service, ctx context.Context, products []product.Product) []product.Product {
	t.Helper()
	out, err := svc.Enrich(ctx, products)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	return out
}

func TestEnrich_SameKeyTriggersOneLookup(t *testing.T) {
	f := &fakeFetcher{}
	svc := NewService(f, nil, nil, DefaultConfig())

	a := testProduct("a", "Solar Powered Camping Lantern Kit")
	b := testProduct("b", "Solar Powered Camping Lantern Kit")
	if CanonicalKey(a) != "solar powered camping lantern kit" {
		t.Fatalf("unexpected key %q", CanonicalKey(a))
	}

	out := mustEnrich(t, svc, context.Background(), []product.Product{a, b})

	if got := f.total.Load(); got != 1 {
		t.Fatalf("lookups = %d, want 1", got)
	}
	for _, p := range out {
		if len(p.BuyLinks) != 1 || p.Source != product.SourceHybrid {
			t.Errorf("product %s: links=%+v source=%s", p.ID, p.BuyLinks, p.Source)
		}
	}
}

func TestEnrich_RespectsBudgetByConfidence(t *testing.T) {
	f := &fakeFetcher{}
	cfg := DefaultConfig()
	cfg.Budget = 2
	svc := NewService(f, nil, nil, cfg)

	products := []product.Product{
		testProduct("p0", "Cast Iron Skillet"),
		testProduct("p1", "Bamboo Cutting Board"),
		testProduct("p2", "Ceramic Pour Over"),
		testProduct("p3", "Wool Hiking Socks"),
	}
	for i, c := range []float64{0.9, 0.5, 0.8, 0.6} {
		products[i].RetailLookupConfidence = ptr(c)
	}

	out := mustEnrich(t, svc, context.Background(), products)

	got := f.fetchedKeys()
	slices.Sort(got)
	want := []string{"cast iron skillet", "ceramic pour over"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("looked up %v, want %v", got, want)
	}
	if len(out[1].BuyLinks) != 0 || len(out[3].BuyLinks) != 0 {
		t.Error("products outside the budget should be untouched")
	}
}

func TestEnrich_PartialFailureIsIsolated(t *testing.T) {
	f := &fakeFetcher{fn: func(ctx context.Context, query string, opts catalog.Options) ([]catalog.Listing, error) {
		if strings.Contains(opts.CanonicalKey, "skillet") {
			return nil, &catalog.ProviderError{StatusCode: 500}
		}
		return []catalog.Listing{{Label: "Shop", URL: "https://shop.example.com/" + slug(opts.CanonicalKey)}}, nil
	}}
	svc := NewService(f, nil, nil, DefaultConfig())

	products := []product.Product{
		testProduct("p0", "Cast Iron Skillet"),
		testProduct("p1", "Bamboo Cutting Board"),
	}
	out := mustEnrich(t, svc, context.Background(), products)

	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0].Source != product.SourceAI || len(out[0].BuyLinks) != 0 {
		t.Errorf("failed product changed: %+v", out[0])
	}
	if out[1].Source != product.SourceHybrid || len(out[1].BuyLinks) != 1 {
		t.Errorf("successful product not enriched: %+v", out[1])
	}
}

func TestEnrich_ProviderUnavailableFails(t *testing.T) {
	f := &fakeFetcher{fn: func(context.Context, string, catalog.Options) ([]catalog.Listing, error) {
		return nil, catalog.ErrProviderUnavailable
	}}
	svc := NewService(f, nil, nil, DefaultConfig())
	in := []product.Product{testProduct("p0", "Cast Iron Skillet")}

	out, err := svc.Enrich(context.Background(), in)
	if !errors.Is(err, catalog.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if out != nil {
		t.Errorf("out = %+v, want nil", out)
	}
}

func TestEnrich_ProviderUnavailableWithoutCandidates(t *testing.T) {
	f := &fakeFetcher{fn: func(context.Context, string, catalog.Options) ([]catalog.Listing, error) {
		return nil, catalog.ErrProviderUnavailable
	}}
	cfg := DefaultConfig()
	cfg.Threshold = 2
	svc := NewService(f, nil, nil, cfg)
	in := []product.Product{testProduct("p0", "Cast Iron Skillet")}

	out := mustEnrich(t, svc, context.Background(), in)
	if !reflect.DeepEqual(out, in) || f.total.Load() != 0 {
		t.Errorf("out = %+v, lookups = %d", out, f.total.Load())
	}
}

func TestEnrich_DedupesURLsAndCapsLinks(t *testing.T) {
	f := &fakeFetcher{fn: func(context.Context, string, catalog.Options) ([]catalog.Listing, error) {
		return []catalog.Listing{
			{Label: "Gadget Hub", URL: "https://shop.example.com/item", Trusted: true},
			{Label: "Other", URL: "https://other.example.com/item"},
		}, nil
	}}
	cfg := DefaultConfig()
	cfg.MaxLinks = 3
	svc := NewService(f, nil, nil, cfg)

	p := testProduct("p0", "Cast Iron Skillet")
	p.BuyLinks = []product.BuyLink{
		{Label: "AI guess", URL: "HTTPS://Shop.Example.com/item"},
		{Label: "Second", URL: "https://second.example.com"},
		{Label: "Third", URL: "https://third.example.com"},
	}

	out := mustEnrich(t, svc, context.Background(), []product.Product{p})
	links := out[0].BuyLinks
	if len(links) != 3 {
		t.Fatalf("links = %+v, want 3", links)
	}
	if links[0].Label != "Gadget Hub" || links[1].Label != "Other" || links[2].Label != "Second" {
		t.Errorf("unexpected order: %+v", links)
	}
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	svc := NewService(&fakeFetcher{}, nil, nil, DefaultConfig())
	in := []product.Product{testProduct("p0", "Cast Iron Skillet")}
	before := in[0].Clone()

	svc.Enrich(context.Background(), in)

	if !reflect.DeepEqual(in[0], before) {
		t.Errorf("input mutated: %+v", in[0])
	}
}

func TestEnrich_SuccessfulLookupsRaiseReuseBonus(t *testing.T) {
	svc := NewService(&fakeFetcher{}, nil, nil, DefaultConfig())
	p := testProduct("p0", "Cast Iron Skillet")

	first := svc.Candidates([]product.Product{p})[0].Confidence
	svc.Enrich(context.Background(), []product.Product{p})
	second := svc.Candidates([]product.Product{p})[0].Confidence

	if second <= first {
		t.Errorf("confidence after reuse = %v, want > %v", second, first)
	}

	svc.ClearRetailerCache()
	if got := svc.Candidates([]product.Product{p})[0].Confidence; got != first {
		t.Errorf("confidence after clear = %v, want %v", got, first)
	}
}

func TestEnrich_CancelledContextDegrades(t *testing.T) {
	f := &fakeFetcher{fn: func(ctx context.Context, _ string, _ catalog.Options) ([]catalog.Listing, error) {
		return nil, errors.New("unreachable")
	}}
	svc := NewService(f, nil, nil, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := mustEnrich(t, svc, ctx, []product.Product{testProduct("p0", "Cast Iron Skillet")})
	if len(out) != 1 || len(out[0].BuyLinks) != 0 {
		t.Errorf("out = %+v", out)
	}
}
