package storage

import (
	"context"
	"time"
)

// CacheStore is the narrow capability the conversation service needs from a keyed cache
type CacheStore[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Remove(key string)
}

// CacheObserver is notified about cache activity, typically to feed metrics
type CacheObserver interface {
	CacheHit()
	CacheMiss()
	CacheExpired()
	CacheEvicted()
}

// TokenCountStore memoizes token counts keyed by encoding and text
type TokenCountStore interface {
	GetTokenCount(ctx context.Context, encoding, text string) (int, bool, error)
	SetTokenCount(ctx context.Context, encoding, text string, count int, ttl time.Duration) error
	Close() error
}
