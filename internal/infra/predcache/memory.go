package predcache

import (
	"context"
	"sync"
	"time"

	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
)

type entry struct {
	result    predictor.Result
	expiresAt time.Time
}

// MemoryCache is the in-process fallback prediction cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (predictor.Result, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return predictor.Result{}, false, nil
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return predictor.Result{}, false, nil
	}
	return e.result, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, res predictor.Result, ttl time.Duration) error {
	e := entry{result: res}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}
