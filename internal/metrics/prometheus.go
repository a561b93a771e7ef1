package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ClientEventLabel is the single event label used for every event whose
// attrs carry origin "client". Client names are caller controlled and would
// otherwise grow the series set without bound.
const ClientEventLabel = "client_event"

// Prometheus turns recorded events into counters, plus a histogram of
// retailer lookup confidence scores.
type Prometheus struct {
	events     *prometheus.CounterVec
	confidence prometheus.Histogram
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "events_total",
			Help:      "Pipeline events by name.",
		}, []string{"event"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "retailer_lookup_confidence",
			Help:      "Confidence scores computed for retailer lookup candidates.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	reg.MustRegister(p.events, p.confidence)
	return p
}

func (p *Prometheus) Record(event string, attrs map[string]any) {
	name := NormalizeEvent(event)
	if name == "" {
		return
	}
	if attrs["origin"] == "client" {
		name = ClientEventLabel
	}
	p.events.WithLabelValues(name).Inc()
	if v, ok := attrs["confidence"].(float64); ok {
		p.confidence.Observe(v)
	}
}
