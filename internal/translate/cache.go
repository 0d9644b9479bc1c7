package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheSize bounds the in-process store when no size is configured.
const DefaultCacheSize = 4096

var cacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "subtext_translation_cache_lookups_total",
		Help: "Translation cache lookups by result",
	},
	[]string{"result"}, // result: hit, miss, error
)

// Store is the key/value backend of the cache. Get reports ok=false on a miss.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// NewStore returns a Redis store when cfg.RedisAddr is set and an in-process
// LRU store otherwise.
func NewStore(ctx context.Context, cfg CacheConfig) (Store, error) {
	ttl := time.Duration(cfg.TTLSec) * time.Second
	if cfg.RedisAddr != "" {
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, ttl)
	}
	return NewMemoryStore(cfg.Size, ttl)
}

// Cached memoizes a Translator. Cache failures are logged and fall through to
// the wrapped translator; they never fail a translation.
type Cached struct {
	next     Translator
	store    Store
	provider string
	source   string
	target   string
}

// NewCached wraps next. The provider and both languages are folded into the
// key so one shared Redis can serve differently configured servers.
func NewCached(next Translator, store Store, provider, source, target string) *Cached {
	return &Cached{next: next, store: store, provider: provider, source: source, target: target}
}

// Translate implements Translator.
func (c *Cached) Translate(ctx context.Context, text string) (string, error) {
	key := cacheKey(c.provider, c.source, c.target, text)

	if v, ok, err := c.store.Get(ctx, key); err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		slog.Warn("Translation cache read failed", "error", err)
	} else if ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return v, nil
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}

	v, err := c.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, v); err != nil {
		slog.Warn("Translation cache write failed", "error", err)
	}
	return v, nil
}

// Close closes the store and the wrapped translator.
func (c *Cached) Close() error {
	return errors.Join(c.store.Close(), c.next.Close())
}

func cacheKey(provider, source, target, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "subtext:tr:" + provider + ":" + source + ":" + target + ":" + hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore is a bounded LRU store with optional expiry.
type MemoryStore struct {
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates a store holding at most size entries. ttl <= 0
// keeps entries until evicted.
func NewMemoryStore(size int, ttl time.Duration) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create translation cache: %w", err)
	}
	return &MemoryStore{cache: c, ttl: ttl, now: time.Now}, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	raw, ok := m.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	e := raw.(memoryEntry)
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.cache.Remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	e := memoryEntry{value: value}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.cache.Add(key, e)
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryStore) Len() int { return m.cache.Len() }

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.cache.Purge()
	return nil
}

// RedisStore keeps translations in Redis so they survive restarts and are
// shared between instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Store. A zero ttl stores without expiry.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
