package classify

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache keeps identifications by formula so repeated molecules skip the
// network. Entries expire after maxAge.
type Cache struct {
	entries sync.Map // map[string]cachedIdentification
	maxAge  time.Duration
	now     func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

type cachedIdentification struct {
	id        Identification
	fetchedAt time.Time
}

// NewCache creates a cache. A non-positive maxAge defaults to one hour.
func NewCache(maxAge time.Duration) *Cache {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Cache{maxAge: maxAge, now: time.Now}
}

// Get returns a copy of the cached identification for formula.
func (c *Cache) Get(formula string) (*Identification, bool) {
	if v, ok := c.entries.Load(formula); ok {
		entry := v.(cachedIdentification)
		if c.now().Sub(entry.fetchedAt) < c.maxAge {
			c.hits.Add(1)
			id := entry.id
			return &id, true
		}
		// Expired
		c.entries.Delete(formula)
	}
	c.misses.Add(1)
	return nil, false
}

// Set stores id under its formula.
func (c *Cache) Set(id *Identification) {
	if id == nil || id.Formula == "" {
		return
	}
	c.entries.Store(id.Formula, cachedIdentification{id: *id, fetchedAt: c.now()})
}

// CacheStats holds cache metrics
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate_pct"`
	Size    int     `json:"size"`
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	hitRate := float64(0)
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	var size int
	c.entries.Range(func(_, _ any) bool {
		size++
		return true
	})
	return CacheStats{Hits: hits, Misses: misses, HitRate: hitRate, Size: size}
}
