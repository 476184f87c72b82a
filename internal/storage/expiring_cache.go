package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// NamespacedKey prefixes id with a store discriminator so logical caches sharing one
// backing store cannot collide.
func NamespacedKey(namespace, id string) string {
	return namespace + "_" + id
}

type cacheEntry[V any] struct {
	value        V
	createdAt    time.Time
	lastAccessed time.Time
}

// ExpiringCache is a capacity-limited in-memory store where every entry has an absolute
// lifetime measured from Set and a sliding lifetime measured from the last Get or Set.
// A zero TTL disables the corresponding rule. Every entry costs one unit of capacity.
// When full, expired entries are dropped first, then the least recently used.
type ExpiringCache[V any] struct {
	mu          sync.Mutex
	entries     *simplelru.LRU[string, *cacheEntry[V]]
	capacity    int
	absoluteTTL time.Duration
	slidingTTL  time.Duration
	now         func() time.Time
	observer    CacheObserver
}

// ------------------------------------------------------------------------------------------------------
// NewExpiringCache creates a cache holding at most capacity entries
func NewExpiringCache[V any](capacity int, absoluteTTL, slidingTTL time.Duration) (*ExpiringCache[V], error) {
	if absoluteTTL < 0 || slidingTTL < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative (absolute %s, sliding %s)", absoluteTTL, slidingTTL)
	}

	entries, err := simplelru.NewLRU[string, *cacheEntry[V]](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache with capacity %d: %w", capacity, err)
	}

	return &ExpiringCache[V]{
		entries:     entries,
		capacity:    capacity,
		absoluteTTL: absoluteTTL,
		slidingTTL:  slidingTTL,
		now:         time.Now,
	}, nil
}

// ------------------------------------------------------------------------------------------------------
// SetObserver registers o to receive hit, miss, expiry and eviction notifications
func (c *ExpiringCache[V]) SetObserver(o CacheObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// ------------------------------------------------------------------------------------------------------
// Get returns the live value for key and refreshes its sliding window
func (c *ExpiringCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	now := c.now()

	entry, ok := c.entries.Get(key)
	if !ok {
		c.notify(CacheObserver.CacheMiss)
		return zero, false
	}

	if c.expired(entry, now) {
		c.entries.Remove(key)
		c.notify(CacheObserver.CacheExpired)
		c.notify(CacheObserver.CacheMiss)
		return zero, false
	}

	entry.lastAccessed = now
	c.notify(CacheObserver.CacheHit)
	return entry.value, true
}

// ------------------------------------------------------------------------------------------------------
// Set inserts or replaces the value for key, restarting both expiration windows
func (c *ExpiringCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if !c.entries.Contains(key) && c.entries.Len() >= c.capacity {
		c.purgeExpired(now)
	}

	evicted := c.entries.Add(key, &cacheEntry[V]{
		value:        value,
		createdAt:    now,
		lastAccessed: now,
	})
	if evicted {
		c.notify(CacheObserver.CacheEvicted)
	}
}

// ------------------------------------------------------------------------------------------------------
// Remove deletes key if present
func (c *ExpiringCache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

// ------------------------------------------------------------------------------------------------------
// PurgeExpired drops every expired entry and returns how many were removed
func (c *ExpiringCache[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpired(c.now())
}

// ------------------------------------------------------------------------------------------------------
// Len reports the number of stored entries, including expired ones not yet swept
func (c *ExpiringCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// ------------------------------------------------------------------------------------------------------
func (c *ExpiringCache[V]) purgeExpired(now time.Time) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if ok && c.expired(entry, now) {
			c.entries.Remove(key)
			c.notify(CacheObserver.CacheExpired)
			removed++
		}
	}
	return removed
}

// ------------------------------------------------------------------------------------------------------
func (c *ExpiringCache[V]) expired(entry *cacheEntry[V], now time.Time) bool {
	if c.absoluteTTL > 0 && !now.Before(entry.createdAt.Add(c.absoluteTTL)) {
		return true
	}
	if c.slidingTTL > 0 && !now.Before(entry.lastAccessed.Add(c.slidingTTL)) {
		return true
	}
	return false
}

// ------------------------------------------------------------------------------------------------------
func (c *ExpiringCache[V]) notify(event func(CacheObserver)) {
	if c.observer != nil {
		event(c.observer)
	}
}
