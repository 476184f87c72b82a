package service

import (
	"sync"
	"time"
)

// ChannelLocks serializes work per channel key so two messages in the same channel cannot
// both read the same stored queue and overwrite each other's turn. Different channels run
// in parallel.
type ChannelLocks struct {
	mu    sync.Mutex
	locks map[string]*channelLock
	now   func() time.Time
}

type channelLock struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

func NewChannelLocks() *ChannelLocks {
	return &ChannelLocks{
		locks: make(map[string]*channelLock),
		now:   time.Now,
	}
}

// ------------------------------------------------------------------------------------------------------
// WithLock executes fn while holding the mutex for key
func (m *ChannelLocks) WithLock(key string, fn func() error) error {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &channelLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		l.lastUsed = m.now()
		m.mu.Unlock()
	}()

	return fn()
}

// ------------------------------------------------------------------------------------------------------
// Cleanup removes locks that nobody holds or waits for and that were not used within maxAge
func (m *ChannelLocks) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, l := range m.locks {
		if l.refs == 0 && now.Sub(l.lastUsed) > maxAge {
			delete(m.locks, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked channel locks
func (m *ChannelLocks) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
