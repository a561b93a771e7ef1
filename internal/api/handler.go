package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/productpulse/pulse/internal/catalog"
	"github.com/productpulse/pulse/internal/enrich"
	"github.com/productpulse/pulse/internal/generation"
	"github.com/productpulse/pulse/internal/metrics"
	"github.com/productpulse/pulse/internal/product"
	"github.com/productpulse/pulse/internal/provider"
	"github.com/productpulse/pulse/internal/scrape"
	"github.com/productpulse/pulse/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Generator produces product pages.
type Generator interface {
	RequestProductPage(ctx context.Context, req product.GenerationRequest, opts generation.Options) (generation.Page, error)
	ClearProductCache()
}

// RetailEnricher merges retailer listings into products and owns the
// retailer lookup cache.
type RetailEnricher interface {
	Enrich(ctx context.Context, products []product.Product) ([]product.Product, error)
	ClearRetailerCache()
	Stats() enrich.Stats
}

// MetricsSummarizer reports persisted metric aggregates.
type MetricsSummarizer interface {
	Summary() (metrics.Summary, error)
}

// Scraper reads product metadata from a retailer page.
type Scraper interface {
	Fetch(ctx context.Context, rawURL string) (scrape.Metadata, error)
}

// ErasureLog records data erase requests.
type ErasureLog interface {
	RecordErasure(e storage.Erasure) error
}

type Deps struct {
	Generator Generator
	Enricher  RetailEnricher
	Metrics   metrics.Recorder
	Summary   MetricsSummarizer   // optional; summary route answers 501 when nil
	Erasures  ErasureLog          // optional; erase requests are not logged when nil
	Scraper   Scraper             // optional; scrape route answers 501 when nil
	Gatherer  prometheus.Gatherer // optional; /metrics is not mounted when nil

	MetricsKey      string
	AllowedOrigins  []string // CORS origins; none means no CORS headers
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Handler is the HTTP surface of the pipeline.
type Handler struct {
	http.Handler

	generateLimit *Limiter
	enrichLimit   *Limiter
	eventLimit    *Limiter
	scrapeLimit   *Limiter
}

// NewHandler builds the router. The generate, enrich, scrape and metric
// ingestion routes have independent rate limits.
func NewHandler(deps Deps) *Handler {
	deps.Metrics = metrics.OrNop(deps.Metrics)
	h := &Handler{
		generateLimit: NewLimiter(deps.RateLimitMax, deps.RateLimitWindow),
		enrichLimit:   NewLimiter(deps.RateLimitMax, deps.RateLimitWindow),
		eventLimit:    NewLimiter(deps.RateLimitMax, deps.RateLimitWindow),
		scrapeLimit:   NewLimiter(deps.RateLimitMax, deps.RateLimitWindow),
	}

	r := chi.NewRouter()
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "x-metrics-key"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}
	r.Get("/health", handleHealth)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.With(h.generateLimit.Handler).Post("/generate", handleGenerate(deps))
		r.With(h.enrichLimit.Handler).Post("/enrich", handleEnrich(deps))
		r.With(h.scrapeLimit.Handler).Post("/scrape", handleScrape(deps))
		r.Post("/feed/interaction", handleInteraction(deps))
		r.Post("/data/erase", handleErase(deps, h.ResetLimits))
		r.With(h.eventLimit.Handler).Post("/metrics/events", handleMetricEvent(deps))
		r.With(MetricsKeyAuth(deps.MetricsKey)).Get("/metrics/summary", handleMetricSummary(deps))
	})

	h.Handler = r
	return h
}

// ResetLimits forgets all rate limit state.
func (h *Handler) ResetLimits() {
	h.generateLimit.Reset()
	h.enrichLimit.Reset()
	h.eventLimit.Reset()
	h.scrapeLimit.Reset()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// decodeBody reads and validates a JSON body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	if err := product.Validate(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps pipeline errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *generation.ValidationError
	switch {
	case errors.Is(err, provider.ErrMissingCredentials), errors.Is(err, catalog.ErrProviderUnavailable):
		httpError(w, http.StatusServiceUnavailable, "configuration_error", "%v", err)
	case errors.As(err, &verr), errors.Is(err, generation.ErrIncompleteResponse):
		httpError(w, http.StatusBadGateway, "validation_error", "%v", err)
	case errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusBadGateway, "provider_error", "upstream timed out: %v", err)
	default:
		httpError(w, http.StatusBadGateway, "provider_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
