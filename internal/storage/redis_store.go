package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore memoizes token counts in Redis. It never holds conversation history.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store
func NewRedisStore(ctx context.Context, addr, password string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: rdb,
	}, nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// GetTokenCount retrieves the cached token count for text under encoding
func (r *RedisStore) GetTokenCount(ctx context.Context, encoding, text string) (int, bool, error) {
	val, err := r.client.Get(ctx, tokenCountKey(encoding, text)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var count int
	if err := json.Unmarshal([]byte(val), &count); err != nil {
		return 0, false, err
	}

	return count, true, nil
}

// SetTokenCount caches the token count for text under encoding
func (r *RedisStore) SetTokenCount(ctx context.Context, encoding, text string, count int, ttl time.Duration) error {
	data, err := json.Marshal(count)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, tokenCountKey(encoding, text), data, ttl).Err()
}

func tokenCountKey(encoding, text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("token_count:%s:%s", encoding, hex.EncodeToString(hash[:]))
}
