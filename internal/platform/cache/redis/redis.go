// Package redis provides a Redis/Valkey cache driver backed by go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/cache"
)

func init() {
	cache.RegisterDriver("redis", func(config map[string]any) (cache.CacheWithCounter, error) {
		cfg := DefaultConfig()
		var fc fileConfig
		if err := mapstructure.WeakDecode(config, &fc); err != nil {
			return nil, fmt.Errorf("decode redis cache config: %w", err)
		}
		fc.applyTo(cfg)
		return New(cfg)
	})
}

// Config holds Redis connection configuration.
type Config struct {
	Addr         string        // Redis address (host:port)
	Password     string        // Optional password
	DB           int           // Database number
	KeyPrefix    string        // Prepended to every key
	DefaultTTL   time.Duration // Used when Set is called with ttl 0
	DialTimeout  time.Duration // Connection timeout
	ReadTimeout  time.Duration // Read timeout
	WriteTimeout time.Duration // Write timeout
	PoolSize     int           // Connection pool size
}

// DefaultConfig returns sensible defaults for Redis connection.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		KeyPrefix:    "fileshare:",
		DefaultTTL:   cache.TTLSession,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// fileConfig is the [cache.drivers.redis] section.
type fileConfig struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	KeyPrefix         string `mapstructure:"key_prefix"`
	DialTimeoutMS     int    `mapstructure:"dial_timeout_ms"`
	PoolSize          int    `mapstructure:"pool_size"`
	DefaultTTLSeconds int    `mapstructure:"default_ttl_seconds"`
}

func (fc fileConfig) applyTo(cfg *Config) {
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	cfg.Password = fc.Password
	cfg.DB = fc.DB
	if fc.KeyPrefix != "" {
		cfg.KeyPrefix = fc.KeyPrefix
	}
	if fc.DialTimeoutMS > 0 {
		cfg.DialTimeout = time.Duration(fc.DialTimeoutMS) * time.Millisecond
	}
	if fc.PoolSize > 0 {
		cfg.PoolSize = fc.PoolSize
	}
	if fc.DefaultTTLSeconds > 0 {
		cfg.DefaultTTL = time.Duration(fc.DefaultTTLSeconds) * time.Second
	}
}

// incrementScript bumps a counter and starts its window on first use.
// Returns {count, pttl_ms}.
var incrementScript = goredis.NewScript(`
local n = redis.call('INCRBY', KEYS[1], ARGV[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// Cache is a Redis-backed cache.
type Cache struct {
	client *goredis.Client
	cfg    *Config
}

// New connects to Redis and fails fast if the server does not answer PING.
func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis health check failed for %s: %w", cfg.Addr, err)
	}

	return &Cache{client: client, cfg: cfg}, nil
}

func (c *Cache) key(k string) string { return c.cfg.KeyPrefix + k }

func (c *Cache) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.cfg.DefaultTTL
	}
	return ttl
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, c.ttlOrDefault(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Increment adds delta to a counter and returns the new value and the time
// the window resets.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	ttl = c.ttlOrDefault(ttl)
	res, err := incrementScript.Run(ctx, c.client, []string{c.counterKey(key)}, delta, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis increment: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("redis increment: unexpected reply %v", res)
	}
	return res[0], time.Now().Add(time.Duration(res[1]) * time.Millisecond), nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, c.counterKey(key)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get count: %w", err)
	}
	return n, nil
}

// Reset drops a counter.
func (c *Cache) Reset(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.counterKey(key)).Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}
	return nil
}

// Counters get their own namespace, matching the memory driver.
func (c *Cache) counterKey(k string) string { return c.cfg.KeyPrefix + "counter:" + k }

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

var _ cache.CacheWithCounter = (*Cache)(nil)
