package api

import (
	"net/http"

	"github.com/productpulse/pulse/internal/generation"
	"github.com/productpulse/pulse/internal/product"
)

type generateRequest struct {
	product.GenerationRequest
	ForceNovelty bool `json:"forceNovelty,omitempty"`
}

type generateResponse struct {
	product.GenerationResponse
	CacheHit bool `json:"cacheHit"`
}

func handleGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if !decodeBody(w, r, &req) {
			return
		}

		page, err := deps.Generator.RequestProductPage(r.Context(), req.GenerationRequest, generation.Options{ForceNovelty: req.ForceNovelty})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		deps.Metrics.Record("api.generate", map[string]any{"cacheHit": page.CacheHit})

		writeJSON(w, http.StatusOK, generateResponse{GenerationResponse: page.Response, CacheHit: page.CacheHit})
	}
}

type enrichRequest struct {
	Products []product.Product `json:"products" validate:"required,min=1,max=20"`
}

type enrichResponse struct {
	Products []product.Product `json:"products"`
}

func handleEnrich(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrichRequest
		if !decodeBody(w, r, &req) {
			return
		}
		products, err := deps.Enricher.Enrich(r.Context(), req.Products)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, enrichResponse{Products: products})
	}
}
