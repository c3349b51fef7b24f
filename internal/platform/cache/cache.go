// Package cache provides TTL key-value storage for login sessions and
// windowed counters for rate limiting.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrExpired  = errors.New("key expired")
)

// Cache provides TTL-based key-value storage.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. If TTL is 0, use default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists and is not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close() error
}

// Counter provides windowed counters for rate limiting.
type Counter interface {
	// Increment adds delta to the counter and returns the new value and the
	// time the window resets. The TTL is applied only when the key is created.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error)

	// GetCount returns the current counter value. Returns 0 if not found.
	GetCount(ctx context.Context, key string) (int64, error)

	// Reset sets the counter to 0.
	Reset(ctx context.Context, key string) error
}

// CacheWithCounter combines Cache and Counter interfaces.
type CacheWithCounter interface {
	Cache
	Counter
}

// Default TTLs for different cache categories.
const (
	TTLSession   = 8 * time.Hour
	TTLRateLimit = 1 * time.Minute
)

// DriverFactory builds a cache from its [cache.drivers.<name>] section.
type DriverFactory func(config map[string]any) (CacheWithCounter, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// RegisterDriver registers a cache driver by name. Called from init().
func RegisterDriver(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFromConfig builds the named driver. An empty name selects "memory".
// driverConfigs is the raw [cache.drivers] table; the driver receives its own
// sub-table or nil.
func NewFromConfig(driver string, driverConfigs map[string]any) (CacheWithCounter, error) {
	if driver == "" {
		driver = "memory"
	}

	driversMu.RLock()
	factory, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cache driver %q (registered: %v)", driver, Drivers())
	}

	var sub map[string]any
	if raw, ok := driverConfigs[driver]; ok {
		sub, _ = raw.(map[string]any)
	}
	return factory(sub)
}
