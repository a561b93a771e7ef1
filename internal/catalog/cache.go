package catalog

import (
	"container/list"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	DefaultCacheTTL      = 15 * time.Minute
	DefaultCacheCapacity = 256
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	key       string
	listings  []Listing
	expiresAt time.Time
}

// CacheStats is a point-in-time view of cache activity.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Cache is a bounded LRU of listings with a per-entry TTL. Expired entries
// are removed lazily on read or by Sweep.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	clock    Clock
	items    map[string]*list.Element
	order    *list.List // front is most recently used

	hits, misses, evictions int64
}

// NewCache creates a cache. Non-positive ttl or capacity fall back to defaults.
func NewCache(ttl time.Duration, capacity int) *Cache {
	return NewCacheWithClock(ttl, capacity, realClock{})
}

// NewCacheWithClock creates a cache with an injectable clock (for testing).
func NewCacheWithClock(ttl time.Duration, capacity int, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		clock:    clock,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// NormalizeKey lowercases and trims a cache key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get returns the listings stored under key. A hit marks the entry as most
// recently used; an expired entry is removed and reported as a miss.
func (c *Cache) Get(key string) ([]Listing, bool) {
	key = NormalizeKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if !c.clock.Now().Before(e.expiresAt) {
		c.removeElement(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return slices.Clone(e.listings), true
}

// Put stores listings under key, replacing any previous entry, and evicts the
// least recently used entry when the cache is over capacity.
func (c *Cache) Put(key string, listings []Listing) {
	key = NormalizeKey(key)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*cacheEntry)
		e.listings = slices.Clone(listings)
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, listings: slices.Clone(listings), expiresAt: expiresAt})
	c.items[key] = el
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
		c.evictions++
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*cacheEntry).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the entry count and the hit, miss and eviction counters
// accumulated since the cache was created.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: c.order.Len(), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

func (c *Cache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).key)
}
