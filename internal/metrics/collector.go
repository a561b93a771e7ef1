package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/productpulse/pulse/internal/storage"
)

const (
	maxEventName         = 64
	defaultBufferSize    = 1024
	defaultFlushInterval = 2 * time.Second
)

// EventStore persists aggregated events.
type EventStore interface {
	RecordMetricEvents(events []storage.MetricEvent) error
	MetricTotals() ([]storage.MetricTotal, error)
	ResetMetrics() error
}

// EventSummary is the aggregate view of one event name.
type EventSummary struct {
	Event        string         `json:"event"`
	Count        int64          `json:"count"`
	LastSampleAt time.Time      `json:"lastSampleAt"`
	Sample       map[string]any `json:"sample,omitempty"`
}

// Summary is a snapshot of everything the collector has persisted.
type Summary struct {
	Events      []EventSummary `json:"events"`
	Dropped     int64          `json:"dropped"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Collector buffers events in memory and flushes them to an EventStore in
// batches. Record never blocks; events are dropped and counted when the
// buffer is full.
type Collector struct {
	store   EventStore
	events  chan storage.MetricEvent
	flush   time.Duration
	dropped atomic.Int64
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewCollector creates a Collector. Non-positive bufferSize or flushInterval
// fall back to defaults.
func NewCollector(store EventStore, bufferSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	return &Collector{
		store:  store,
		events: make(chan storage.MetricEvent, bufferSize),
		flush:  flushInterval,
		logger: slog.Default(),
	}
}

func (c *Collector) Record(event string, attrs map[string]any) {
	name := NormalizeEvent(event)
	if name == "" {
		return
	}
	e := storage.MetricEvent{Name: name, AttrsJSON: encodeAttrs(attrs), RecordedAt: time.Now().UTC()}
	select {
	case c.events <- e:
	default:
		c.dropped.Add(1)
	}
}

// Run flushes buffered events every interval until ctx is cancelled, then
// flushes once more.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.flush)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if _, err := c.Flush(); err != nil {
				c.logger.Error("final metrics flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if _, err := c.Flush(); err != nil {
				c.logger.Error("metrics flush failed", "error", err)
			}
		}
	}
}

// Flush writes every buffered event to the store and returns how many were
// written.
func (c *Collector) Flush() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var batch []storage.MetricEvent
drain:
	for {
		select {
		case e := <-c.events:
			batch = append(batch, e)
		default:
			break drain
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := c.store.RecordMetricEvents(batch); err != nil {
		return 0, fmt.Errorf("flushing %d metric events: %w", len(batch), err)
	}
	return len(batch), nil
}

// Summary flushes pending events and returns the persisted aggregates.
func (c *Collector) Summary() (Summary, error) {
	if _, err := c.Flush(); err != nil {
		return Summary{}, err
	}
	totals, err := c.store.MetricTotals()
	if err != nil {
		return Summary{}, fmt.Errorf("loading metric totals: %w", err)
	}
	s := Summary{
		Events:      make([]EventSummary, 0, len(totals)),
		Dropped:     c.dropped.Load(),
		GeneratedAt: time.Now().UTC(),
	}
	for _, t := range totals {
		es := EventSummary{Event: t.Event, Count: t.Count, LastSampleAt: t.LastSampleAt}
		if t.SampleJSON != "" && t.SampleJSON != "{}" {
			if err := json.Unmarshal([]byte(t.SampleJSON), &es.Sample); err != nil {
				c.logger.Debug("skipping unreadable metric sample", "event", t.Event, "error", err)
			}
		}
		s.Events = append(s.Events, es)
	}
	return s, nil
}

// Reset discards buffered events and clears the store.
func (c *Collector) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.events) > 0 {
		<-c.events
	}
	c.dropped.Store(0)
	return c.store.ResetMetrics()
}

// NormalizeEvent trims an event name and bounds its length.
func NormalizeEvent(event string) string {
	event = strings.TrimSpace(event)
	if runes := []rune(event); len(runes) > maxEventName {
		event = string(runes[:maxEventName])
	}
	return event
}

// encodeAttrs keeps scalar attributes as-is and stringifies everything else
// as JSON so the sample stays a flat object.
func encodeAttrs(attrs map[string]any) string {
	if len(attrs) == 0 {
		return "{}"
	}
	flat := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch v.(type) {
		case nil, string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
			flat[k] = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				flat[k] = fmt.Sprint(v)
				continue
			}
			flat[k] = string(b)
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return "{}"
	}
	return string(b)
}
