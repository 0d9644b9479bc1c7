package translate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTranslator struct {
	calls  map[string]int
	err    error
	closed bool
}

func (c *countingTranslator) Translate(_ context.Context, text string) (string, error) {
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[text]++
	if c.err != nil {
		return "", c.err
	}
	return "tr(" + text + ")", nil
}

func (c *countingTranslator) Close() error {
	c.closed = true
	return nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}
func (brokenStore) Set(context.Context, string, string) error {
	return errors.New("connection refused")
}
func (brokenStore) Close() error { return nil }

func TestCached_HitSkipsTranslator(t *testing.T) {
	inner := &countingTranslator{}
	store, err := NewMemoryStore(16, 0)
	require.NoError(t, err)
	c := NewCached(inner, store, "google", "es", "en")
	ctx := context.Background()

	for range 3 {
		got, err := c.Translate(ctx, "Hola")
		require.NoError(t, err)
		assert.Equal(t, "tr(Hola)", got)
	}
	assert.Equal(t, 1, inner.calls["Hola"])

	_, err = c.Translate(ctx, "Mundo")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls["Mundo"])
	assert.Equal(t, 2, store.Len())

	require.NoError(t, c.Close())
	assert.True(t, inner.closed)
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	inner := &countingTranslator{err: errors.New("quota exceeded")}
	store, err := NewMemoryStore(16, 0)
	require.NoError(t, err)
	c := NewCached(inner, store, "google", "es", "en")

	_, err = c.Translate(context.Background(), "Hola")
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Zero(t, store.Len())
}

func TestCached_StoreFailureFallsThrough(t *testing.T) {
	inner := &countingTranslator{}
	c := NewCached(inner, brokenStore{}, "google", "es", "en")

	got, err := c.Translate(context.Background(), "Hola")
	require.NoError(t, err)
	assert.Equal(t, "tr(Hola)", got)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store, err := NewMemoryStore(4, time.Minute)
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_Bounded(t *testing.T) {
	store, err := NewMemoryStore(2, 0)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))
	require.NoError(t, store.Set(ctx, "c", "3"))

	assert.Equal(t, 2, store.Len())
	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestCacheKey(t *testing.T) {
	key := cacheKey("google", "es", "en", "Hola")
	assert.Equal(t, key, cacheKey("google", "es", "en", "Hola"))
	assert.NotEqual(t, key, cacheKey("google", "es", "de", "Hola"))
	assert.NotEqual(t, key, cacheKey("google", "pt", "en", "Hola"))
	assert.NotEqual(t, key, cacheKey("gemini", "es", "en", "Hola"))
	assert.True(t, strings.HasPrefix(key, "subtext:tr:google:es:en:"))
}

func TestCached_SharedStoreSeparatesSourceLanguages(t *testing.T) {
	store, err := NewMemoryStore(16, 0)
	require.NoError(t, err)
	ctx := context.Background()

	inner := &countingTranslator{}
	require.NoError(t, store.Set(ctx, cacheKey("google", "es", "en", "Sí"), "Yes"))
	portuguese := NewCached(inner, store, "google", "pt", "en")

	got, err := portuguese.Translate(ctx, "Sí")
	require.NoError(t, err)
	assert.Equal(t, "tr(Sí)", got)
	assert.Equal(t, 1, inner.calls["Sí"])
	assert.Equal(t, 2, store.Len())
}

func TestNewStore_RedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewStore(ctx, CacheConfig{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}
