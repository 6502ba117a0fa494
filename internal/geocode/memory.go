package geocode

import (
	"sync"

	"geomedia-api/internal/models"
)

// MemoryCache is an in-process map of parsed responses keyed by
// Location.CacheKey. Entries never expire.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*models.PlaceResponse
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*models.PlaceResponse)}
}

// Get returns the cached response for key.
func (c *MemoryCache) Get(key string) (*models.PlaceResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.entries[key]
	return resp, ok
}

// Put stores resp unless key already has a value; the first value wins.
func (c *MemoryCache) Put(key string, resp *models.PlaceResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.entries[key] = resp
	}
}

// Len reports the number of cached responses.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
