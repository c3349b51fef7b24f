// Package store selects and builds the persistence driver that backs share
// records, access logs and user accounts.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
)

// Driver is a persistence backend. Implementations must be safe for
// concurrent use.
type Driver interface {
	// Init opens the database and migrates the schema.
	Init(ctx context.Context) error

	Close() error

	// Name returns the driver name (sqlite, mirror).
	Name() string

	Ping(ctx context.Context) error

	Shares() shares.Repo
	Parties() identity.PartyRepo
}

// Config holds driver selection and initialization settings.
type Config struct {
	// Driver is the driver name. Empty selects sqlite.
	Driver string

	// DataDir holds the database file and the mirror export.
	DataDir string

	Mirror MirrorConfig

	Log *slog.Logger
}

// MirrorConfig holds options for the sqlite + JSON mirror driver.
type MirrorConfig struct {
	// IncludeSecrets writes share tokens into the export.
	IncludeSecrets bool
}

// DriverFactory creates a driver instance.
type DriverFactory func(cfg *Config) (Driver, error)

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

// New creates the configured driver. Init is left to the caller.
func New(cfg *Config) (Driver, error) {
	name := cfg.Driver
	if name == "" {
		name = "sqlite"
	}

	driversMu.RLock()
	factory, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (registered: %v)", name, AvailableDrivers())
	}
	return factory(cfg)
}

// AvailableDrivers returns the registered driver names, sorted.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
