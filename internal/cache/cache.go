// SPDX-License-Identifier: MIT

// Package cache provides byte caches with TTL support, in memory or in Redis.
// Templates and encoded fragment contexts are kept here between requests.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache provides thread-safe caching with expiration support.
type Cache interface {
	// Get retrieves a value from the cache. Returns false if not found or expired.
	Get(key string) ([]byte, bool)
	// Set stores a value in the cache with the specified TTL.
	Set(key string, value []byte, ttl time.Duration)
	// Delete removes a value from the cache.
	Delete(key string)
	// Clear removes all values from the cache.
	Clear()
	// Stats returns cache statistics.
	Stats() CacheStats
	// Close releases background resources.
	Close() error
}

// CacheStats holds cache performance metrics.
type CacheStats struct {
	Hits        int64 // Number of successful Get operations
	Misses      int64 // Number of failed Get operations (not found or expired)
	Sets        int64 // Number of Set operations
	Evictions   int64 // Number of expired entries cleaned up
	CurrentSize int   // Current number of cached entries
}

// counters are shared by the implementations; Get runs under a read lock so
// they cannot be plain integers.
type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

func (c *counters) snapshot(size int) CacheStats {
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

// entry represents a cached value with expiration time.
type entry struct {
	value      []byte
	expiration time.Time
}

// isExpired checks if the entry has expired. A zero expiration never expires.
func (e *entry) isExpired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// memoryCache is an in-memory implementation of Cache.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   counters
	janitor *janitor
	once    sync.Once
}

// NewMemoryCache creates a new in-memory cache with automatic cleanup.
// The cleanupInterval determines how often expired entries are removed.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
	}

	// Start background cleanup goroutine
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}

	return c
}

// Get retrieves a value from the cache.
func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, found := c.entries[key]
	if !found || e.isExpired(time.Now()) {
		c.stats.misses.Add(1)
		return nil, false
	}

	c.stats.hits.Add(1)
	return e.value, true
}

// Set stores a value in the cache. A ttl of zero keeps the value until it is
// deleted.
func (c *memoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expiration = time.Now().Add(ttl)
	}
	c.entries[key] = e
	c.stats.sets.Add(1)
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all values from the cache.
func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Stats returns cache statistics.
func (c *memoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.snapshot(len(c.entries))
}

// deleteExpired removes all expired entries from the cache.
// Returns the number of entries deleted.
func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0
	for key, entry := range c.entries {
		if entry.isExpired(now) {
			delete(c.entries, key)
			count++
		}
	}

	c.stats.evictions.Add(int64(count))
	return count
}

// Close stops the background cleanup goroutine.
func (c *memoryCache) Close() error {
	if c.janitor != nil {
		c.once.Do(func() { close(c.janitor.stop) })
	}
	return nil
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

// run starts the cleanup loop.
func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// noOpCache is a cache that does nothing (useful for disabling caching).
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache anything.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(string) ([]byte, bool)         { return nil, false }
func (noOpCache) Set(string, []byte, time.Duration) {}
func (noOpCache) Delete(string)                     {}
func (noOpCache) Clear()                            {}
func (noOpCache) Stats() CacheStats                 { return CacheStats{} }
func (noOpCache) Close() error                      { return nil }
