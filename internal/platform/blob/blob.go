// Package blob stores uploaded file contents behind a driver registry.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store holds file contents by key.
type Store interface {
	// Put writes size bytes from r under key, replacing any existing blob.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns ErrNotFound when key is absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
	Name() string
	Close() error
}

// Pinger is implemented by stores that can check their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DriverFactory builds a store from its [blob.drivers.<name>] table.
type DriverFactory func(conf map[string]any, log *slog.Logger) (Store, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name. Called from init().
func Register(name string, factory DriverFactory) {
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

// New builds the named driver, passing it only its own config table.
// An empty name selects "local".
func New(driver string, driverConfigs map[string]any, log *slog.Logger) (Store, error) {
	if driver == "" {
		driver = "local"
	}
	driversMu.RLock()
	factory, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown blob driver %q (registered: %v)", driver, Drivers())
	}

	var conf map[string]any
	if raw, ok := driverConfigs[driver]; ok {
		conf, ok = raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("blob.drivers.%s must be a table", driver)
		}
	}
	return factory(conf, log)
}
