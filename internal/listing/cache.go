package listing

import (
	"log"
	"sync"
	"time"

	"TakaneWatch/internal/model"
)

// Cache wraps a Source and serves a cached listing until the TTL lapses.
// The exchange list changes at most daily, and refetching it for every
// scan would hammer the upstream for nothing.
type Cache struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	cached    []model.Listing
	fetchedAt time.Time
}

// NewCache creates a caching decorator around src.
func NewCache(src Source, ttl time.Duration) *Cache {
	return &Cache{src: src, ttl: ttl, now: time.Now}
}

func (c *Cache) List() ([]model.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.cached, nil
	}

	listings, err := c.src.List()
	if err != nil {
		if c.cached != nil {
			// Stale is better than nothing when the upstream flakes.
			log.Printf("[WARN] listing refresh failed, serving stale cache: %v", err)
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = listings
	c.fetchedAt = c.now()
	return listings, nil
}
