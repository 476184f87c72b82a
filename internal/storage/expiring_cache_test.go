package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	hits, misses, expired, evicted int
}

func (o *countingObserver) CacheHit()     { o.hits++ }
func (o *countingObserver) CacheMiss()    { o.misses++ }
func (o *countingObserver) CacheExpired() { o.expired++ }
func (o *countingObserver) CacheEvicted() { o.evicted++ }

func newTestCache(t *testing.T, capacity int, absolute, sliding time.Duration) (*ExpiringCache[string], *fakeClock) {
	t.Helper()

	cache, err := NewExpiringCache[string](capacity, absolute, sliding)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache.now = clock.Now
	return cache, clock
}

func TestNewExpiringCache_InvalidArguments(t *testing.T) {
	_, err := NewExpiringCache[string](0, time.Hour, time.Minute)
	assert.Error(t, err)

	_, err = NewExpiringCache[string](4, -time.Hour, time.Minute)
	assert.Error(t, err)
}

func TestExpiringCache_SetGetRemove(t *testing.T) {
	cache, _ := newTestCache(t, 4, time.Hour, time.Minute)

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	cache.Set("a", "alpha")
	v, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	cache.Set("a", "replaced")
	v, _ = cache.Get("a")
	assert.Equal(t, "replaced", v)
	assert.Equal(t, 1, cache.Len())

	cache.Remove("a")
	cache.Remove("never-set")
	_, ok = cache.Get("a")
	assert.False(t, ok)
}

func TestExpiringCache_SlidingRefresh(t *testing.T) {
	cache, clock := newTestCache(t, 4, 7*24*time.Hour, time.Hour)

	cache.Set("chan", "history")

	// Reads inside the sliding window keep the entry alive well past one window.
	for i := 0; i < 5; i++ {
		clock.Advance(50 * time.Minute)
		_, ok := cache.Get("chan")
		require.True(t, ok, "read %d", i)
	}

	clock.Advance(61 * time.Minute)
	_, ok := cache.Get("chan")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len(), "expired entry removed on read")
}

func TestExpiringCache_AbsoluteCeiling(t *testing.T) {
	cache, clock := newTestCache(t, 4, 3*time.Hour, time.Hour)

	cache.Set("chan", "history")

	for elapsed := 30 * time.Minute; elapsed < 3*time.Hour; elapsed += 30 * time.Minute {
		clock.Advance(30 * time.Minute)
		_, ok := cache.Get("chan")
		require.True(t, ok, "at %s", elapsed)
	}

	clock.Advance(30 * time.Minute)
	_, ok := cache.Get("chan")
	assert.False(t, ok, "absolute ttl wins over recent reads")
}

func TestExpiringCache_SetRestartsWindows(t *testing.T) {
	cache, clock := newTestCache(t, 4, 2*time.Hour, time.Hour)

	cache.Set("chan", "v1")
	clock.Advance(90 * time.Minute)
	_, _ = cache.Get("chan")
	cache.Set("chan", "v2")

	clock.Advance(50 * time.Minute)
	v, ok := cache.Get("chan")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestExpiringCache_ZeroTTLDisablesRule(t *testing.T) {
	cache, clock := newTestCache(t, 4, 0, time.Hour)

	cache.Set("chan", "v")
	for i := 0; i < 48; i++ {
		clock.Advance(59 * time.Minute)
		_, ok := cache.Get("chan")
		require.True(t, ok)
	}
}

func TestExpiringCache_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	cache, clock := newTestCache(t, 3, 0, 0)
	obs := &countingObserver{}
	cache.SetObserver(obs)

	cache.Set("a", "1")
	clock.Advance(time.Second)
	cache.Set("b", "2")
	clock.Advance(time.Second)
	cache.Set("c", "3")
	clock.Advance(time.Second)

	// Touch "a" so "b" becomes the least recently used.
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Set("d", "4")

	_, ok = cache.Get("b")
	assert.False(t, ok)
	for _, key := range []string{"a", "c", "d"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, 1, obs.evicted)
}

func TestExpiringCache_CapacityPrefersExpiredEntries(t *testing.T) {
	cache, clock := newTestCache(t, 2, 0, time.Hour)
	obs := &countingObserver{}
	cache.SetObserver(obs)

	cache.Set("stale", "1")
	clock.Advance(30 * time.Minute)
	cache.Set("fresh", "2")
	clock.Advance(40 * time.Minute)

	// "stale" is past its sliding window; "fresh" is live but not the oldest to be touched.
	_, ok := cache.Get("fresh")
	require.True(t, ok)
	cache.Set("new", "3")

	_, ok = cache.Get("fresh")
	assert.True(t, ok)
	_, ok = cache.Get("new")
	assert.True(t, ok)
	assert.Equal(t, 1, obs.expired)
	assert.Equal(t, 0, obs.evicted)
}

func TestExpiringCache_PurgeExpired(t *testing.T) {
	cache, clock := newTestCache(t, 8, 0, time.Hour)

	cache.Set("a", "1")
	cache.Set("b", "2")
	clock.Advance(45 * time.Minute)
	cache.Set("c", "3")
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 2, cache.PurgeExpired())
	assert.Equal(t, 1, cache.Len())
}

func TestExpiringCache_ObserverCounts(t *testing.T) {
	cache, clock := newTestCache(t, 2, 0, time.Minute)
	obs := &countingObserver{}
	cache.SetObserver(obs)

	_, _ = cache.Get("x")
	cache.Set("x", "1")
	_, _ = cache.Get("x")
	clock.Advance(2 * time.Minute)
	_, _ = cache.Get("x")

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
	assert.Equal(t, 1, obs.expired)
}

func TestExpiringCache_ConcurrentAccess(t *testing.T) {
	cache, err := NewExpiringCache[int](16, time.Hour, time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("chan-%d", id)
			for j := 0; j < 100; j++ {
				cache.Set(key, j)
				_, _ = cache.Get(key)
				if j%10 == 0 {
					cache.Remove(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 16)
}

func TestNamespacedKey(t *testing.T) {
	assert.Equal(t, "ChannelConversationCache_12345", NamespacedKey("ChannelConversationCache", "12345"))
}
