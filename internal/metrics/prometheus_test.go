package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus_CountsEventsAndConfidence(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.Record("ai.retailer_cache_hit", nil)
	p.Record("ai.retailer_cache_hit", nil)
	p.Record("ai.retailer_lookup_confidence", map[string]any{"confidence": 0.72})

	if got := testutil.ToFloat64(p.events.WithLabelValues("ai.retailer_cache_hit")); got != 2 {
		t.Errorf("cache hits = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(p.confidence); got != 1 {
		t.Errorf("confidence series = %d, want 1", got)
	}
}

func TestPrometheus_FoldsClientEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.Record("ai.cache_hit", nil)
	p.Record("ui.opened_drawer", map[string]any{"origin": "client"})
	p.Record("ui.something_new", map[string]any{"origin": "client"})

	if got := testutil.CollectAndCount(p.events); got != 2 {
		t.Errorf("event series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(p.events.WithLabelValues(ClientEventLabel)); got != 2 {
		t.Errorf("client events = %v, want 2", got)
	}
}
