package appleid

import (
	"context"
	"sync"
	"time"
)

// Cache stores the raw key set document between verifications.
// Implementations must be safe for concurrent use; the last Store wins.
type Cache interface {
	// Fetch returns the value stored under key, or false when it is missing or expired.
	Fetch(ctx context.Context, key string) ([]byte, bool)
	// Store saves value under key for ttl.
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCacheOption customizes a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch implements Cache.
func (c *MemoryCache) Fetch(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || len(entry.value) == 0 {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return append([]byte(nil), entry.value...), true
}

// Store implements Cache. A non-positive ttl removes the entry.
func (c *MemoryCache) Store(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.entries, key)
		return nil
	}
	c.entries[key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

var (
	sharedOnce  sync.Once
	sharedCache *MemoryCache
)

// SharedCache returns the process-wide MemoryCache.
func SharedCache() *MemoryCache {
	sharedOnce.Do(func() {
		sharedCache = NewMemoryCache()
	})
	return sharedCache
}
