package benchmark

import (
	"fmt"
	"sync"
	"time"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// Cache is an in-memory TTL cache for benchmark fetches, keyed by sector,
// stage, and geography. Entries past the TTL are misses; entries whose
// warehouse data is older than maxAge are rejected even inside the TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxAge  time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	data     *model.BenchmarkData
	cachedAt time.Time
}

// NewCache creates a cache. maxAge of zero disables the staleness check.
func NewCache(ttl, maxAge time.Duration) *Cache {
	return &Cache{
		entries: map[string]cacheEntry{},
		ttl:     ttl,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func cacheKey(q Query) string {
	return fmt.Sprintf("%s|%s|%s", q.Sector, q.Stage, q.Geography)
}

// Get returns the cached data for the query if it is fresh.
func (c *Cache) Get(q Query) (*model.BenchmarkData, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(q)]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := c.now()
	if now.Sub(entry.cachedAt) > c.ttl {
		return nil, false
	}
	if c.maxAge > 0 && !entry.data.LastUpdated.IsZero() && now.Sub(entry.data.LastUpdated) > c.maxAge {
		return nil, false
	}
	return entry.data, true
}

// Put stores data for the query.
func (c *Cache) Put(q Query, data *model.BenchmarkData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(q)] = cacheEntry{data: data, cachedAt: c.now()}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]cacheEntry{}
}
