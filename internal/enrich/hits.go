package enrich

import "sync"

const maxHotKeys = 50

// HotQueryHits counts successful resolutions per canonical key. It tracks at
// most maxHotKeys keys; once full, unseen keys are not admitted but known
// keys keep counting.
type HotQueryHits struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewHotQueryHits() *HotQueryHits {
	return &HotQueryHits{counts: make(map[string]int)}
}

func (h *HotQueryHits) Get(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[key]
}

func (h *HotQueryHits) Increment(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.counts[key]; !ok && len(h.counts) >= maxHotKeys {
		return
	}
	h.counts[key]++
}

func (h *HotQueryHits) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.counts)
}

func (h *HotQueryHits) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts = make(map[string]int)
}
