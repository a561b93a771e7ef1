package generation

import (
	"sync"

	"github.com/productpulse/pulse/internal/product"
)

// ResponseCache holds validated responses by request fingerprint. Entries
// never expire; they are removed only by Clear.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]product.GenerationResponse
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{entries: make(map[string]product.GenerationResponse)}
}

func (c *ResponseCache) Get(fingerprint string) (product.GenerationResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.entries[fingerprint]
	if !ok {
		return product.GenerationResponse{}, false
	}
	return resp.Clone(), true
}

func (c *ResponseCache) Put(fingerprint string, resp product.GenerationResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = resp.Clone()
}

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]product.GenerationResponse)
}

func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
