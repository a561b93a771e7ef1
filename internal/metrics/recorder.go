// Package metrics provides the fire-and-forget event sink used across the
// lookup and generation pipeline.
package metrics

// Recorder accepts named events with loose attributes. Implementations must
// not block the caller.
type Recorder interface {
	Record(event string, attrs map[string]any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(string, map[string]any) {}

// Multi fans an event out to several recorders in order.
type Multi []Recorder

func (m Multi) Record(event string, attrs map[string]any) {
	for _, r := range m {
		if r != nil {
			r.Record(event, attrs)
		}
	}
}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
