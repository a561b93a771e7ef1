package api

import (
	"errors"
	"net/http"

	"github.com/productpulse/pulse/internal/scrape"
)

type scrapeRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type scrapeResponse struct {
	OK      bool            `json:"ok"`
	Payload scrape.Metadata `json:"payload"`
}

func handleScrape(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Scraper == nil {
			httpError(w, http.StatusNotImplemented, "configuration_error", "scraping is disabled")
			return
		}

		var req scrapeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		md, err := deps.Scraper.Fetch(r.Context(), req.URL)
		deps.Metrics.Record("api.scrape", map[string]any{"ok": err == nil})
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, scrape.ErrBlockedHost) || errors.Is(err, scrape.ErrUnsupportedScheme) {
				status = http.StatusBadRequest
			}
			httpError(w, status, "scrape_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, scrapeResponse{OK: true, Payload: md})
	}
}
