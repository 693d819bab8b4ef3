package classify

import (
	"container/list"
	"sync"
	"time"

	"github.com/openprogramia/propuestas/internal/domain/classification"
)

const (
	// DefaultCacheTTL is how long a classification stays valid.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheEntries bounds the cache; the least recently used entry goes first.
	DefaultCacheEntries = 1000
)

// CacheStats is a snapshot of cache occupancy. Expired entries stay until
// overwritten or evicted.
type CacheStats struct {
	TotalEntries    int     `json:"total_entries"`
	ValidEntries    int     `json:"valid_entries"`
	ExpiredEntries  int     `json:"expired_entries"`
	CacheTTLMinutes float64 `json:"cache_ttl_minutes"`
}

// Cache is a bounded LRU of classifications keyed by normalized query.
// Expiry is checked on read; nothing sweeps in the background.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
	now        func() time.Time
}

type cacheEntry struct {
	key      string
	result   classification.Result
	storedAt time.Time
}

// NewCache creates a cache. Non-positive arguments fall back to the defaults.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get returns a copy of the cached result if present and fresh.
func (c *Cache) Get(key string) (classification.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return classification.Result{}, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().Sub(entry.storedAt) >= c.ttl {
		return classification.Result{}, false
	}
	c.ll.MoveToFront(el)
	return entry.result.Clone(), true
}

// Set stores result under key, replacing any previous entry.
func (c *Cache) Set(key string, result classification.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := result.Clone()
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.result = stored
		entry.storedAt = c.now()
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, result: stored, storedAt: c.now()})
	c.items[key] = el
	for c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.items)
}

// Stats counts valid and expired entries at the current instant.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := CacheStats{
		TotalEntries:    c.ll.Len(),
		CacheTTLMinutes: c.ttl.Minutes(),
	}
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if now.Sub(el.Value.(*cacheEntry).storedAt) < c.ttl {
			stats.ValidEntries++
		} else {
			stats.ExpiredEntries++
		}
	}
	return stats
}
