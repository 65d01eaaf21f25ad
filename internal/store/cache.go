package store

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dpoulos/hellas-grid-monitor/internal/logger"
	"github.com/dpoulos/hellas-grid-monitor/internal/metrics"
)

const (
	DefaultSuccessTTL = 900 * time.Second
	DefaultFailureTTL = 60 * time.Second
	DefaultMaxEntries = 1024
)

var errInvalidTTL = errors.New("cache ttl must be positive")

// Clock supplies the current time to the cache.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Entry is a memoized provider outcome. Failed fetches are stored with their error.
type Entry struct {
	Key       string
	Value     any
	Err       error
	FetchedAt time.Time
	TTL       time.Duration
}

// Expired reports whether now - FetchedAt > TTL.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) > e.TTL
}

// Options configures a Cache.
type Options struct {
	MaxEntries int
	SuccessTTL time.Duration
	FailureTTL time.Duration
	Clock      Clock
}

// Cache is a process-wide read-through cache with separate TTLs for
// successful and failed results. Each entry read or write is atomic; concurrent
// misses on the same key may both fetch, and the last writer wins.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache

	clock      Clock
	successTTL time.Duration
	failureTTL time.Duration
}

// NewCache creates a Cache. Zero options fall back to the defaults.
func NewCache(opts Options) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.SuccessTTL == 0 {
		opts.SuccessTTL = DefaultSuccessTTL
	}
	if opts.FailureTTL == 0 {
		opts.FailureTTL = DefaultFailureTTL
	}
	if opts.SuccessTTL < 0 || opts.FailureTTL < 0 {
		return nil, errInvalidTTL
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	entries, err := lru.New(opts.MaxEntries)
	if err != nil {
		return nil, err
	}

	return &Cache{
		entries:    entries,
		clock:      opts.Clock,
		successTTL: opts.SuccessTTL,
		failureTTL: opts.FailureTTL,
	}, nil
}

// Get returns a live entry. Expired entries are removed and reported as absent.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.entries.Get(key)
	if !ok {
		return Entry{}, false
	}
	entry := raw.(Entry)
	if entry.Expired(c.clock.Now()) {
		c.entries.Remove(key)
		return Entry{}, false
	}
	return entry, true
}

// Put stores an outcome. A non-nil err is kept for the failure TTL.
func (c *Cache) Put(key string, value any, err error) Entry {
	ttl := c.successTTL
	if err != nil {
		ttl = c.failureTTL
		value = nil
	}
	entry := Entry{
		Key:       key,
		Value:     value,
		Err:       err,
		FetchedAt: c.clock.Now(),
		TTL:       ttl,
	}

	c.mu.Lock()
	c.entries.Add(key, entry)
	c.mu.Unlock()

	return entry
}

// Invalidate drops every entry and returns how many were removed.
func (c *Cache) Invalidate() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.entries.Len()
	c.entries.Purge()
	metrics.CacheEntries.Set(0)
	return n
}

// PurgeExpired evicts entries past their TTL and returns how many were removed.
func (c *Cache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for _, k := range c.entries.Keys() {
		raw, ok := c.entries.Peek(k)
		if !ok {
			continue
		}
		if raw.(Entry).Expired(now) {
			c.entries.Remove(k)
			removed++
		}
	}
	metrics.CacheEntries.Set(float64(c.entries.Len()))
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Fetch returns the cached outcome for key or calls fn and memoizes its result.
// op labels metrics and logs.
func Fetch[T any](c *Cache, op, key string, fn func() (T, error)) (T, error) {
	if entry, ok := c.Get(key); ok {
		if entry.Err != nil {
			metrics.CacheHits.WithLabelValues(op).Inc()
			logger.Debug().Str("op", op).Str("key", key).Msg("cache hit (failure)")
			var zero T
			return zero, entry.Err
		}
		if v, ok := entry.Value.(T); ok {
			metrics.CacheHits.WithLabelValues(op).Inc()
			logger.Debug().Str("op", op).Str("key", key).Msg("cache hit")
			return v, nil
		}
	}

	metrics.CacheMisses.WithLabelValues(op).Inc()
	logger.Debug().Str("op", op).Str("key", key).Msg("cache miss")

	v, err := fn()
	c.Put(key, v, err)
	metrics.CacheEntries.Set(float64(c.Len()))
	return v, err
}
