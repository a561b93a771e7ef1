package api

import (
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/productpulse/pulse/internal/feed"
	"github.com/productpulse/pulse/internal/product"
	"github.com/productpulse/pulse/internal/storage"
)

func handleErase(deps Deps, resetLimits func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Generator.ClearProductCache()
		deps.Enricher.ClearRetailerCache()
		resetLimits()

		e := storage.Erasure{
			ID:       uuid.NewString(),
			ErasedAt: time.Now().UTC(),
			Scope:    "caches",
			Client:   r.UserAgent(),
		}
		if deps.Erasures != nil {
			if err := deps.Erasures.RecordErasure(e); err != nil {
				slog.Warn("failed to log erasure", "id", e.ID, "error", err)
			}
		}
		deps.Metrics.Record("api.data_erased", map[string]any{"id": e.ID})

		writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "id": e.ID})
	}
}

type metricEventRequest struct {
	Event string         `json:"event" validate:"required,max=64"`
	Meta  map[string]any `json:"meta,omitempty"`
}

func handleMetricEvent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req metricEventRequest
		if !decodeBody(w, r, &req) {
			return
		}
		attrs := make(map[string]any, len(req.Meta)+1)
		maps.Copy(attrs, req.Meta)
		attrs["origin"] = "client"
		deps.Metrics.Record(req.Event, attrs)

		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func handleMetricSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Summary == nil {
			httpError(w, http.StatusNotImplemented, "configuration_error", "metrics store not configured")
			return
		}
		summary, err := deps.Summary.Summary()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading metrics: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":       true,
			"snapshot": summary,
			"retail":   deps.Enricher.Stats(),
		})
	}
}

type interactionRequest struct {
	Preferences product.Preferences `json:"preferences"`
	Product     *product.Product    `json:"product,omitempty" validate:"-"`
	Interaction string              `json:"interaction,omitempty"`
	Search      string              `json:"search,omitempty" validate:"max=500"`
	Queue       []product.Product   `json:"queue,omitempty" validate:"max=50"`
}

type interactionResponse struct {
	Preferences product.Preferences `json:"preferences"`
	SearchTerms []string            `json:"searchTerms,omitempty"`
	Queue       []product.Product   `json:"queue,omitempty"`
}

// handleInteraction applies a swipe and an optional search to the caller's
// preferences and reorders the caller's queue against the result.
func handleInteraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interactionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		prefs := req.Preferences
		if req.Product != nil {
			interaction, err := feed.ParseInteraction(req.Interaction)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			prefs = feed.AdjustWeights(prefs, *req.Product, interaction)
			deps.Metrics.Record("feed.interaction", map[string]any{"interaction": string(interaction)})
		}

		var resp interactionResponse
		if req.Search != "" {
			resp.SearchTerms = feed.DeriveSearchTerms(req.Search)
			prefs = feed.MergeSearchIntoPreferences(prefs, resp.SearchTerms)
		}
		if len(req.Queue) > 0 {
			resp.Queue = feed.RankForQueue(req.Queue, prefs)
		}
		resp.Preferences = prefs

		writeJSON(w, http.StatusOK, resp)
	}
}
