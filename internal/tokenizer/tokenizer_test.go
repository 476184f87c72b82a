package tokenizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTiktoken_Count(t *testing.T) {
	tk, err := NewTiktoken("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEncoding, tk.Encoding())

	n, err := tk.Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	short, err := tk.Count("hello")
	require.NoError(t, err)
	assert.Equal(t, 1, short)

	long, err := tk.Count(strings.Repeat("penguins chill on Bouvet Island. ", 20))
	require.NoError(t, err)
	assert.Greater(t, long, short)
}

func TestNewTiktoken_UnknownEncoding(t *testing.T) {
	_, err := NewTiktoken("not-an-encoding")
	assert.Error(t, err)
}

type wordCounter struct{ calls int }

func (w *wordCounter) Count(text string) (int, error) {
	w.calls++
	return len(strings.Fields(text)), nil
}

func TestCountAll(t *testing.T) {
	n, err := CountAll(&wordCounter{}, "one two", "three", "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

type memoryCountStore struct {
	counts   map[string]int
	getErr   error
	setErr   error
	lastTTL  time.Duration
	setCalls int
}

func newMemoryCountStore() *memoryCountStore {
	return &memoryCountStore{counts: make(map[string]int)}
}

func (m *memoryCountStore) GetTokenCount(_ context.Context, encoding, text string) (int, bool, error) {
	if m.getErr != nil {
		return 0, false, m.getErr
	}
	n, ok := m.counts[encoding+"|"+text]
	return n, ok, nil
}

func (m *memoryCountStore) SetTokenCount(_ context.Context, encoding, text string, count int, ttl time.Duration) error {
	m.setCalls++
	m.lastTTL = ttl
	if m.setErr != nil {
		return m.setErr
	}
	m.counts[encoding+"|"+text] = count
	return nil
}

func (m *memoryCountStore) Close() error { return nil }

func TestCached_MemoizesCounts(t *testing.T) {
	next := &wordCounter{}
	store := newMemoryCountStore()
	cached := NewCached(next, store, "words", time.Hour, zap.NewNop())

	for i := 0; i < 3; i++ {
		n, err := cached.Count("a b c")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, store.setCalls)
	assert.Equal(t, time.Hour, store.lastTTL)
}

func TestCached_FallsBackWhenStoreFails(t *testing.T) {
	next := &wordCounter{}
	store := newMemoryCountStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	cached := NewCached(next, store, "words", time.Hour, zap.NewNop())

	n, err := cached.Count("a b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, next.calls)
}

// slowReadStore times out every read and records whether writes still had time left
type slowReadStore struct {
	memoryCountStore
	writeCtxErr error
}

func (s *slowReadStore) GetTokenCount(ctx context.Context, _, _ string) (int, bool, error) {
	<-ctx.Done()
	return 0, false, ctx.Err()
}

func (s *slowReadStore) SetTokenCount(ctx context.Context, encoding, text string, count int, ttl time.Duration) error {
	s.writeCtxErr = ctx.Err()
	return s.memoryCountStore.SetTokenCount(ctx, encoding, text, count, ttl)
}

func TestCached_SlowReadDoesNotExpireWrite(t *testing.T) {
	next := &wordCounter{}
	store := &slowReadStore{memoryCountStore: *newMemoryCountStore()}
	cached := NewCached(next, store, "words", time.Hour, zap.NewNop())

	n, err := cached.Count("a b c d")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, 1, store.setCalls)
	assert.NoError(t, store.writeCtxErr)
	assert.Equal(t, 4, store.counts["words|a b c d"])
}
