// Package deps provides shared dependencies for all services.
package deps

import (
	"sync"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/gateway"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/blob"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/cache"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store"
)

var (
	sharedDeps     *Deps
	sharedDepsOnce sync.Once
)

// Deps holds the process-wide dependencies services are built from.
// The server builds it once in main; services read it in their constructors.
type Deps struct {
	// Identity (for session-gated endpoints)
	PartyRepo   identity.PartyRepo
	SessionRepo identity.SessionRepo
	UserAuth    *identity.UserAuth

	// Persistence
	Store store.Driver
	Blob  blob.Store

	// Share domain
	Shares  *shares.Manager
	Gateway *gateway.Gateway

	// Config (for handlers that need config values)
	Config *config.Config

	// Cache backs sessions and the rate limit counters.
	Cache cache.CacheWithCounter

	// RealIP provides trusted-proxy-aware client IP extraction.
	// This is the single source of truth for client identity in logging and rate limiting.
	RealIP *realip.TrustedProxies
}

// SetDeps sets the shared dependencies. Must be called once at startup
// before any services are constructed.
func SetDeps(d *Deps) {
	sharedDepsOnce.Do(func() {
		sharedDeps = d
	})
}

// GetDeps returns the shared dependencies.
// Returns nil if SetDeps has not been called.
func GetDeps() *Deps {
	return sharedDeps
}

// ResetDeps is for testing only. Resets the singleton.
func ResetDeps() {
	sharedDeps = nil
	sharedDepsOnce = sync.Once{}
}
