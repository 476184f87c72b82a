package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelLocks_WithLockReturnsError(t *testing.T) {
	locks := NewChannelLocks()
	want := errors.New("boom")

	err := locks.WithLock("a", func() error { return want })
	assert.Equal(t, want, err)
}

func TestChannelLocks_SerializesSameKey(t *testing.T) {
	locks := NewChannelLocks()

	var inFlight, maxSeen int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locks.WithLock("same", func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
}

func TestChannelLocks_DifferentKeysRunInParallel(t *testing.T) {
	locks := NewChannelLocks()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = locks.WithLock("a", func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	go func() {
		_ = locks.WithLock("b", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	close(release)
}

func TestChannelLocks_Cleanup(t *testing.T) {
	locks := NewChannelLocks()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	locks.now = func() time.Time { return now }

	_ = locks.WithLock("old", func() error { return nil })
	now = now.Add(time.Hour)
	_ = locks.WithLock("fresh", func() error { return nil })

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locks.WithLock("busy", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, locks.Cleanup(45*time.Minute))
	assert.Equal(t, 2, locks.Len())

	close(release)
}
