package utils

import "sync"

// SeenCache is a bounded set of already-processed keys. When it fills
// up the whole set is dropped; occasionally re-checking an old
// attachment is harmless, unbounded growth is not.
type SeenCache struct {
	mu    sync.Mutex
	limit int
	seen  map[string]struct{}
}

func NewSeenCache(limit int) *SeenCache {
	return &SeenCache{
		limit: limit,
		seen:  make(map[string]struct{}),
	}
}

// Seen reports whether key was already recorded, recording it if not.
func (c *SeenCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[key]; ok {
		return true
	}

	if c.limit > 0 && len(c.seen) >= c.limit {
		c.seen = make(map[string]struct{})
	}
	c.seen[key] = struct{}{}
	return false
}

func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
