package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MetricEvent is a single recorded pipeline event waiting to be aggregated.
type MetricEvent struct {
	Name       string
	AttrsJSON  string // JSON object
	RecordedAt time.Time
}

// MetricTotal is the running aggregate for one event name.
type MetricTotal struct {
	Event        string    `json:"event"`
	Count        int64     `json:"count"`
	LastSampleAt time.Time `json:"lastSampleAt"`
	SampleJSON   string    `json:"-"`
}

// Erasure records a data erase request.
type Erasure struct {
	ID       string    `json:"id"`
	ErasedAt time.Time `json:"erasedAt"`
	Scope    string    `json:"scope"`
	Client   string    `json:"client,omitempty"`
}
