// Package memory provides the in-process cache driver.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/cache"
)

func init() {
	cache.RegisterDriver("memory", func(config map[string]any) (cache.CacheWithCounter, error) {
		var c Config
		if err := mapstructure.WeakDecode(config, &c); err != nil {
			return nil, err
		}
		c.ApplyDefaults()
		return New(time.Duration(c.DefaultTTLSeconds)*time.Second, time.Duration(c.CleanupIntervalSeconds)*time.Second), nil
	})
}

// Config is the [cache.drivers.memory] section.
type Config struct {
	DefaultTTLSeconds      int `mapstructure:"default_ttl_seconds"`
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultTTLSeconds <= 0 {
		c.DefaultTTLSeconds = int(cache.TTLSession / time.Second)
	}
	if c.CleanupIntervalSeconds <= 0 {
		c.CleanupIntervalSeconds = 300
	}
}

// entry holds either a byte value or a counter; both expire at expiresAt.
type entry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

// Cache is an in-memory cache with TTL support. Values and counters live in
// separate keyspaces so a session id can never collide with a rate limit key.
type Cache struct {
	mu         sync.Mutex
	values     map[string]*entry
	counters   map[string]*entry
	defaultTTL time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a new in-memory cache.
// cleanupInterval specifies how often expired keys are swept (0 disables).
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	c := &Cache{
		values:     make(map[string]*entry),
		counters:   make(map[string]*entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.sweepLoop(cleanupInterval)
	}
	return c
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, m := range []map[string]*entry{c.values, c.counters} {
		for k, e := range m {
			if now.After(e.expiresAt) {
				delete(m, k)
			}
		}
	}
}

func (c *Cache) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.defaultTTL
	}
	return ttl
}

// Get retrieves a copy of the value stored under key.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.values[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	if c.now().After(e.expiresAt) {
		delete(c.values, key)
		return nil, cache.ErrExpired
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value with the given TTL.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &entry{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(c.ttlOrDefault(ttl)),
	}
	c.mu.Lock()
	c.values[key] = e
	c.mu.Unlock()
	return nil
}

// Delete removes a value key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.values, key)
	c.mu.Unlock()
	return nil
}

// Exists reports whether key holds an unexpired value.
func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.values[key]
	return ok && !c.now().After(e.expiresAt), nil
}

// Increment adds delta to a counter and returns the new value and reset time.
// An expired counter starts a fresh window.
func (c *Cache) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.counters[key]
	if !ok || now.After(e.expiresAt) {
		e = &entry{expiresAt: now.Add(c.ttlOrDefault(ttl))}
		c.counters[key] = e
	}
	e.count += delta
	return e.count, e.expiresAt, nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.counters[key]
	if !ok || c.now().After(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}

// Reset drops a counter.
func (c *Cache) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.counters, key)
	c.mu.Unlock()
	return nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

var _ cache.CacheWithCounter = (*Cache)(nil)
