package tokenizer

import (
	"context"
	"time"

	"chat-relay/internal/storage"

	"go.uber.org/zap"
)

const storeTimeout = 250 * time.Millisecond

// Cached memoizes token counts in a shared store. Store failures are logged and the
// wrapped counter answers instead, so a flaky cache never fails a count.
type Cached struct {
	next     Counter
	store    storage.TokenCountStore
	encoding string
	ttl      time.Duration
	logger   *zap.Logger
}

// ------------------------------------------------------------------------------------------------------
func NewCached(next Counter, store storage.TokenCountStore, encoding string, ttl time.Duration, logger *zap.Logger) *Cached {
	return &Cached{
		next:     next,
		store:    store,
		encoding: encoding,
		ttl:      ttl,
		logger:   logger,
	}
}

// ------------------------------------------------------------------------------------------------------
func (c *Cached) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	count, found, err := c.lookup(text)
	if err != nil {
		c.logger.Warn("Token count cache read failed", zap.Error(err))
	} else if found {
		return count, nil
	}

	count, err = c.next.Count(text)
	if err != nil {
		return 0, err
	}

	c.remember(text, count)

	return count, nil
}

func (c *Cached) lookup(text string) (int, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return c.store.GetTokenCount(ctx, c.encoding, text)
}

// remember gets its own deadline so a slow read does not also sink the write
func (c *Cached) remember(text string, count int) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := c.store.SetTokenCount(ctx, c.encoding, text, count, c.ttl); err != nil {
		c.logger.Warn("Token count cache write failed", zap.Error(err))
	}
}
