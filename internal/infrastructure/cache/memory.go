package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cardlens/backend/internal/domain"
)

// cacheItem represents a single cached price result with expiration.
type cacheItem struct {
	Value      *domain.PriceResult
	Expiration time.Time
}

// MemoryCache is a thread-safe in-memory cache with TTL support for resolved
// price results. Entries store a private copy so callers can never mutate a
// cached result in place.
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	cache := &MemoryCache{
		data: make(map[string]cacheItem),
	}

	// Cleanup goroutine removes expired entries every 10 minutes.
	go cache.cleanupExpired()

	return cache
}

// Get retrieves a price result from the cache.
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.PriceResult, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	if time.Now().After(item.Expiration) {
		return nil, domain.ErrCacheMiss
	}

	return copyResult(item.Value), nil
}

// Set stores a price result in the cache with TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value *domain.PriceResult, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem{
		Value:      copyResult(value),
		Expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a price result from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Exists checks if a key exists in the cache and is not expired.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return false, nil
	}

	if time.Now().After(item.Expiration) {
		return false, nil
	}

	return true, nil
}

// cleanupExpired removes expired entries from the cache periodically.
func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now()
		for key, item := range c.data {
			if now.After(item.Expiration) {
				delete(c.data, key)
			}
		}
		c.mutex.Unlock()
	}
}

// Size returns the current number of items in the cache (for debugging).
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all items from the cache.
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}

// copyResult deep-copies a price result, including its grade maps.
func copyResult(r *domain.PriceResult) *domain.PriceResult {
	if r == nil {
		return nil
	}
	dup := *r
	if r.RawPrice != nil {
		raw := *r.RawPrice
		dup.RawPrice = &raw
	}
	if r.Grades != nil {
		dup.Grades = make(map[string]map[string]float64, len(r.Grades))
		for authority, prices := range r.Grades {
			inner := make(map[string]float64, len(prices))
			for grade, v := range prices {
				inner[grade] = v
			}
			dup.Grades[authority] = inner
		}
	}
	return &dup
}
