package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/productpulse/pulse/internal/catalog"
	"github.com/productpulse/pulse/internal/enrich"
	"github.com/productpulse/pulse/internal/generation"
	"github.com/productpulse/pulse/internal/metrics"
	"github.com/productpulse/pulse/internal/product"
	"github.com/productpulse/pulse/internal/provider"
	"github.com/productpulse/pulse/internal/scrape"
	"github.com/productpulse/pulse/internal/storage"
)

// --- fakes ---

type fakeGenerator struct {
	mu       sync.Mutex
	page     generation.Page
	err      error
	calls    int
	lastReq  product.GenerationRequest
	lastOpts generation.Options
	cleared  int
}

func (f *fakeGenerator) RequestProductPage(_ context.Context, req product.GenerationRequest, opts generation.Options) (generation.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	f.lastOpts = opts
	return f.page, f.err
}

func (f *fakeGenerator) ClearProductCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

type fakeEnricher struct {
	mu      sync.Mutex
	cleared int
	stats   enrich.Stats
	err     error
}

func (f *fakeEnricher) Enrich(_ context.Context, products []product.Product) ([]product.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]product.Product, len(products))
	for i, p := range products {
		p = p.Clone()
		p.BuyLinks = append(p.BuyLinks, product.BuyLink{Label: "Shop", URL: "https://shop.example/" + p.ID})
		p.Source = product.SourceHybrid
		out[i] = p
	}
	return out, nil
}

func (f *fakeEnricher) ClearRetailerCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeEnricher) Stats() enrich.Stats { return f.stats }

type recordedEvent struct {
	name  string
	attrs map[string]any
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeRecorder) Record(event string, attrs map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{name: event, attrs: attrs})
}

func (f *fakeRecorder) find(name string) (recordedEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.name == name {
			return e, true
		}
	}
	return recordedEvent{}, false
}

type fakeSummary struct {
	summary metrics.Summary
	err     error
}

func (f fakeSummary) Summary() (metrics.Summary, error) { return f.summary, f.err }

// --- helpers ---

func sampleProduct(id string, tags ...string) product.Product {
	p := product.Product{
		ID:           id,
		Title:        "Product " + id,
		Pros:         []string{"light", "quiet"},
		Cons:         []string{"pricey"},
		PriceRange:   product.PriceRange{Min: 10, Max: 20, Currency: "USD"},
		NoveltyScore: 0.5,
		Source:       product.SourceAI,
	}
	for _, t := range tags {
		p.Tags = append(p.Tags, product.Tag{ID: t, Label: t})
	}
	return p
}

func samplePage(cacheHit bool) generation.Page {
	return generation.Page{
		Response: product.GenerationResponse{
			Products: []product.Product{sampleProduct("p1"), sampleProduct("p2")},
			Debug:    &product.Debug{Provider: "fake"},
		},
		CacheHit: cacheHit,
	}
}

type testEnv struct {
	handler *Handler
	gen     *fakeGenerator
	enr     *fakeEnricher
	rec     *fakeRecorder
	store   *storage.Store
}

func newTestEnv(t *testing.T, mutate func(*Deps)) testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := testEnv{
		gen:   &fakeGenerator{page: samplePage(false)},
		enr:   &fakeEnricher{},
		rec:   &fakeRecorder{},
		store: store,
	}
	deps := Deps{
		Generator:       env.gen,
		Enricher:        env.enr,
		Metrics:         env.rec,
		Summary:         fakeSummary{summary: metrics.Summary{Events: []metrics.EventSummary{{Event: "ai.cache_hit", Count: 3}}}},
		Erasures:        store,
		MetricsKey:      "secret",
		RateLimitMax:    100,
		RateLimitWindow: time.Minute,
	}
	if mutate != nil {
		mutate(&deps)
	}
	env.handler = NewHandler(deps)
	return env
}

func do(h http.Handler, method, url, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rr.Body.String(), err)
	}
	return body.Error.Type
}

const validGenerateBody = `{"sessionId":"s1","userId":"u1","preferences":{"likedTags":["desk"]},"searchTerms":["lamp"],"resultsRequested":2}`

// --- tests ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := do(env.handler, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestGenerate_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gen.page = samplePage(true)

	body := strings.TrimSuffix(validGenerateBody, "}") + `,"forceNovelty":true}`
	rr := do(env.handler, http.MethodPost, "/api/generate", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Products []product.Product `json:"products"`
		CacheHit bool              `json:"cacheHit"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Products) != 2 {
		t.Errorf("products = %d, want 2", len(resp.Products))
	}
	if !resp.CacheHit {
		t.Error("cacheHit = false, want true")
	}
	if !env.gen.lastOpts.ForceNovelty {
		t.Error("forceNovelty was not passed through")
	}
	if env.gen.lastReq.SessionID != "s1" || len(env.gen.lastReq.SearchTerms) != 1 {
		t.Errorf("request not decoded: %+v", env.gen.lastReq)
	}
	ev, ok := env.rec.find("api.generate")
	if !ok {
		t.Fatal("api.generate not recorded")
	}
	if ev.attrs["cacheHit"] != true {
		t.Errorf("cacheHit attr = %v", ev.attrs["cacheHit"])
	}
}

func TestGenerate_BadRequest(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := map[string]string{
		"malformed":       `{"sessionId":`,
		"missing session": `{"userId":"u1"}`,
		"negative count":  `{"sessionId":"s1","userId":"u1","resultsRequested":-1}`,
	}
	for name, body := range cases {
		rr := do(env.handler, http.MethodPost, "/api/generate", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rr.Code)
			continue
		}
		if got := errorType(t, rr); got != "invalid_request_error" {
			t.Errorf("%s: type = %q", name, got)
		}
	}
	if env.gen.calls != 0 {
		t.Errorf("generator called %d times for invalid input", env.gen.calls)
	}
}

func TestGenerate_ErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"missing ai key", fmt.Errorf("describing products: %w", provider.ErrMissingCredentials), http.StatusServiceUnavailable, "configuration_error"},
		{"invalid payload", &generation.ValidationError{Err: errors.New("products (min)")}, http.StatusBadGateway, "validation_error"},
		{"incomplete", fmt.Errorf("%w: got 1, want 2", generation.ErrIncompleteResponse), http.StatusBadGateway, "validation_error"},
		{"upstream", &provider.Error{Provider: "openai", StatusCode: 500, Message: "boom"}, http.StatusBadGateway, "provider_error"},
		{"timeout", context.DeadlineExceeded, http.StatusBadGateway, "provider_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.gen.err = tc.err
			rr := do(env.handler, http.MethodPost, "/api/generate", validGenerateBody)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if got := errorType(t, rr); got != tc.wantType {
				t.Errorf("type = %q, want %q", got, tc.wantType)
			}
		})
	}
}

func TestGenerate_RateLimitAndErase(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimitMax = 2 })

	for i := 0; i < 2; i++ {
		if rr := do(env.handler, http.MethodPost, "/api/generate", validGenerateBody); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rr.Code)
		}
	}
	rr := do(env.handler, http.MethodPost, "/api/generate", validGenerateBody)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}

	// A different client has its own budget.
	rr = do(env.handler, http.MethodPost, "/api/generate", validGenerateBody, "User-Agent", "other-client")
	if rr.Code != http.StatusOK {
		t.Fatalf("other client: status = %d, want 200", rr.Code)
	}

	if rr := do(env.handler, http.MethodPost, "/api/data/erase", ""); rr.Code != http.StatusOK {
		t.Fatalf("erase: status = %d", rr.Code)
	}
	rr = do(env.handler, http.MethodPost, "/api/generate", validGenerateBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("after erase: status = %d, want 200", rr.Code)
	}
}

func TestEnrich_RateLimitAndErase(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimitMax = 1 })
	body, _ := json.Marshal(map[string]any{"products": []product.Product{sampleProduct("p1")}})

	if rr := do(env.handler, http.MethodPost, "/api/enrich", string(body)); rr.Code != http.StatusOK {
		t.Fatalf("first: status = %d, want 200", rr.Code)
	}
	rr := do(env.handler, http.MethodPost, "/api/enrich", string(body))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if typ := errorType(t, rr); typ != "rate_limit_error" {
		t.Errorf("error type = %q", typ)
	}

	// Enrich has its own budget, separate from generate.
	if rr := do(env.handler, http.MethodPost, "/api/generate", validGenerateBody); rr.Code != http.StatusOK {
		t.Fatalf("generate: status = %d, want 200", rr.Code)
	}

	if rr := do(env.handler, http.MethodPost, "/api/data/erase", ""); rr.Code != http.StatusOK {
		t.Fatalf("erase: status = %d", rr.Code)
	}
	if rr := do(env.handler, http.MethodPost, "/api/enrich", string(body)); rr.Code != http.StatusOK {
		t.Fatalf("after erase: status = %d, want 200", rr.Code)
	}
}

func TestErase_ClearsCachesAndLogs(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.handler, http.MethodPost, "/api/data/erase", "", "User-Agent", "pulse-test")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if env.gen.cleared != 1 || env.enr.cleared != 1 {
		t.Errorf("cleared generation=%d retail=%d, want 1 each", env.gen.cleared, env.enr.cleared)
	}

	var resp struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Status != "cleared" || resp.ID == "" {
		t.Errorf("response = %+v", resp)
	}

	erasures, err := env.store.ListErasures(10)
	if err != nil {
		t.Fatalf("ListErasures: %v", err)
	}
	if len(erasures) != 1 || erasures[0].ID != resp.ID || erasures[0].Client != "pulse-test" {
		t.Errorf("erasures = %+v", erasures)
	}
}

func TestMetricEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.handler, http.MethodPost, "/api/metrics/events", `{"event":"feed.swipe","meta":{"direction":"left"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
	ev, ok := env.rec.find("feed.swipe")
	if !ok {
		t.Fatal("event not recorded")
	}
	if ev.attrs["origin"] != "client" || ev.attrs["direction"] != "left" {
		t.Errorf("attrs = %v", ev.attrs)
	}

	for _, body := range []string{`{"event":""}`, `{"event":"` + strings.Repeat("x", 65) + `"}`} {
		if rr := do(env.handler, http.MethodPost, "/api/metrics/events", body); rr.Code != http.StatusBadRequest {
			t.Errorf("body %.20s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestMetricEvents_ClientNamesShareOneSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, func(d *Deps) {
		d.Gatherer = reg
		d.Metrics = metrics.NewPrometheus(reg)
	})

	for _, body := range []string{
		`{"event":"ui.first"}`,
		`{"event":"ui.second","meta":{"origin":"server"}}`,
	} {
		if rr := do(env.handler, http.MethodPost, "/api/metrics/events", body); rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
	}

	out := do(env.handler, http.MethodGet, "/metrics", "").Body.String()
	if !strings.Contains(out, `pulse_events_total{event="client_event"} 2`) {
		t.Errorf("client events not folded:\n%s", out)
	}
	if strings.Contains(out, "ui.first") || strings.Contains(out, "ui.second") {
		t.Errorf("client event name leaked into labels:\n%s", out)
	}
}

func TestMetricSummary_Auth(t *testing.T) {
	env := newTestEnv(t, nil)

	if rr := do(env.handler, http.MethodGet, "/api/metrics/summary", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rr.Code)
	}
	if rr := do(env.handler, http.MethodGet, "/api/metrics/summary", "", "x-metrics-key", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", rr.Code)
	}

	rr := do(env.handler, http.MethodGet, "/api/metrics/summary", "", "x-metrics-key", "secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		OK       bool            `json:"ok"`
		Snapshot metrics.Summary `json:"snapshot"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !resp.OK || len(resp.Snapshot.Events) != 1 || resp.Snapshot.Events[0].Count != 3 {
		t.Errorf("response = %+v", resp)
	}
}

func TestMetricSummary_Disabled(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.MetricsKey = "" })
	rr := do(env.handler, http.MethodGet, "/api/metrics/summary", "", "x-metrics-key", "anything")
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rr.Code)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheus(reg)
	env := newTestEnv(t, func(d *Deps) {
		d.Gatherer = reg
		d.Metrics = prom
	})

	if rr := do(env.handler, http.MethodPost, "/api/generate", validGenerateBody); rr.Code != http.StatusOK {
		t.Fatalf("generate: status = %d", rr.Code)
	}
	rr := do(env.handler, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `pulse_events_total{event="api.generate"} 1`) {
		t.Errorf("metrics output missing api.generate counter:\n%s", rr.Body.String())
	}
}

func TestEnrichEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	body, _ := json.Marshal(map[string]any{"products": []product.Product{sampleProduct("p1")}})
	rr := do(env.handler, http.MethodPost, "/api/enrich", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
	var resp enrichResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].Source != product.SourceHybrid || len(resp.Products[0].BuyLinks) != 1 {
		t.Errorf("products = %+v", resp.Products)
	}

	if rr := do(env.handler, http.MethodPost, "/api/enrich", `{"products":[]}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty products: status = %d, want 400", rr.Code)
	}
}

func TestEnrichEndpoint_ProviderUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.enr.err = fmt.Errorf("enriching products: %w", catalog.ErrProviderUnavailable)

	body, _ := json.Marshal(map[string]any{"products": []product.Product{sampleProduct("p1")}})
	rr := do(env.handler, http.MethodPost, "/api/enrich", string(body))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503; body = %s", rr.Code, rr.Body.String())
	}
	if typ := errorType(t, rr); typ != "configuration_error" {
		t.Errorf("error type = %q, want configuration_error", typ)
	}
}

func TestFeedInteraction(t *testing.T) {
	env := newTestEnv(t, nil)

	liked := sampleProduct("p1", "desk")
	reqBody, _ := json.Marshal(map[string]any{
		"preferences": product.Preferences{BlacklistedItems: []string{"p9"}},
		"product":     liked,
		"interaction": "liked",
		"search":      "Desk Lamp",
		"queue": []product.Product{
			sampleProduct("p2", "garden"),
			sampleProduct("p9", "desk"),
			sampleProduct("p3", "desk"),
			sampleProduct("p3", "desk"),
		},
	})

	rr := do(env.handler, http.MethodPost, "/api/feed/interaction", string(reqBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
	var resp interactionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	if got := resp.Preferences.TagWeights["desk"]; got <= 0.2 {
		t.Errorf("desk weight = %v, want like plus search boost", got)
	}
	if len(resp.SearchTerms) != 2 || resp.SearchTerms[0] != "desk" || resp.SearchTerms[1] != "lamp" {
		t.Errorf("searchTerms = %v", resp.SearchTerms)
	}
	if len(resp.Queue) != 2 || resp.Queue[0].ID != "p3" || resp.Queue[1].ID != "p2" {
		ids := make([]string, len(resp.Queue))
		for i, p := range resp.Queue {
			ids[i] = p.ID
		}
		t.Errorf("queue = %v, want [p3 p2]", ids)
	}
	if _, ok := env.rec.find("feed.interaction"); !ok {
		t.Error("feed.interaction not recorded")
	}
}

func TestFeedInteraction_UnknownInteraction(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"preferences":{},"product":{"id":"p1","title":"x"},"interaction":"loved"}`
	if rr := do(env.handler, http.MethodPost, "/api/feed/interaction", body); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.AllowedOrigins = []string{"https://feed.example"} })

	rr := do(env.handler, http.MethodOptions, "/api/generate", "",
		"Origin", "https://feed.example",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Content-Type")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://feed.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	rr = do(env.handler, http.MethodGet, "/health", "", "Origin", "https://evil.example")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestNoCORSByDefault(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := do(env.handler, http.MethodGet, "/health", "", "Origin", "https://feed.example")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want none", got)
	}
}

type fakeScraper struct {
	md  scrape.Metadata
	err error
}

func (f fakeScraper) Fetch(ctx context.Context, rawURL string) (scrape.Metadata, error) {
	if f.err != nil {
		return scrape.Metadata{}, f.err
	}
	md := f.md
	md.URL = rawURL
	return md, nil
}

func TestScrape(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Scraper = fakeScraper{md: scrape.Metadata{Title: "Riser", Summary: "Walnut."}}
	})

	rr := do(env.handler, http.MethodPost, "/api/scrape", `{"url":"https://shop.example/riser"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp scrapeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.Payload.Title != "Riser" || resp.Payload.URL != "https://shop.example/riser" {
		t.Errorf("response = %+v", resp)
	}
	if ev, ok := env.rec.find("api.scrape"); !ok || ev.attrs["ok"] != true {
		t.Errorf("api.scrape metric = %+v", ev)
	}

	rr = do(env.handler, http.MethodPost, "/api/scrape", `{"url":"not a url"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid url status = %d", rr.Code)
	}
}

func TestScrapeErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{scrape.ErrBlockedHost, http.StatusBadRequest},
		{scrape.ErrDisallowed, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: status 500", scrape.ErrFetch), http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		env := newTestEnv(t, func(d *Deps) { d.Scraper = fakeScraper{err: c.err} })
		rr := do(env.handler, http.MethodPost, "/api/scrape", `{"url":"https://shop.example/x"}`)
		if rr.Code != c.status {
			t.Errorf("%v: status = %d, want %d", c.err, rr.Code, c.status)
		}
		if errorType(t, rr) != "scrape_error" {
			t.Errorf("%v: type = %q", c.err, errorType(t, rr))
		}
	}

	env := newTestEnv(t, nil)
	rr := do(env.handler, http.MethodPost, "/api/scrape", `{"url":"https://shop.example/x"}`)
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("disabled scraper status = %d", rr.Code)
	}
}
