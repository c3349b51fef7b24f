// Package api provides the /api/* endpoints: health, account and the
// owner share management API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/api"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/api/account"
	sharesapi "github.com/MahdiBaghbani/fileshare-go/internal/components/api/shares"
	"github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/fileshare-go/internal/interceptors"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/blob"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
)

func init() {
	service.MustRegister("api", New)
}

// Config holds api service configuration.
type Config struct {
	// Ratelimit holds rate limiting configuration for this service.
	Ratelimit RatelimitConfig `mapstructure:"ratelimit"`

	// PublicOrigin prefixes download links in share views. Empty falls back
	// to the request host.
	PublicOrigin string `mapstructure:"public_origin"`

	AllowRegistration bool `mapstructure:"allow_registration"`

	SessionTTLSeconds int `mapstructure:"session_ttl_seconds"`
}

// RatelimitConfig holds the per-service rate limiting opt-in.
type RatelimitConfig struct {
	// Profile is the name of the ratelimit profile to use from
	// [http.interceptors.ratelimit.profiles.<name>].
	Profile string `mapstructure:"profile"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.SessionTTLSeconds <= 0 {
		c.SessionTTLSeconds = int(account.DefaultSessionTTL / time.Second)
	}
}

// Service is the API service.
type Service struct {
	router chi.Router
	conf   *Config
	log    *slog.Logger
}

// New creates a new API service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "api", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Shares == nil || d.PartyRepo == nil || d.SessionRepo == nil || d.UserAuth == nil {
		return nil, errors.New("api: shares and identity deps are required")
	}

	var authMiddleware func(http.Handler) http.Handler
	if c.Ratelimit.Profile != "" {
		var interceptorsCfg map[string]map[string]any
		if d.Config != nil {
			interceptorsCfg = d.Config.HTTP.Interceptors
		}
		mw, err := interceptors.Build(interceptorsCfg, "ratelimit", c.Ratelimit.Profile, log)
		if err != nil {
			return nil, fmt.Errorf("api: %w", err)
		}
		authMiddleware = mw
	}

	accountHandler := account.NewHandler(
		d.PartyRepo,
		d.SessionRepo,
		d.UserAuth,
		time.Duration(c.SessionTTLSeconds)*time.Second,
		c.AllowRegistration,
	)
	sharesHandler := sharesapi.NewHandler(d.Shares, c.PublicOrigin)

	r := chi.NewRouter()

	// Health endpoint (public)
	r.Get("/healthz", api.NewHealthHandler(healthChecks(d)...))

	r.Route("/auth", func(r chi.Router) {
		// Only the credential endpoints are rate limited.
		r.Group(func(r chi.Router) {
			if authMiddleware != nil {
				r.Use(authMiddleware)
			}
			r.Post("/login", accountHandler.Login)
			r.Post("/register", accountHandler.Register)
		})
		r.Post("/logout", accountHandler.Logout) // session
		r.Get("/me", accountHandler.Me)          // session
	})

	// Share management (session-gated)
	r.Route("/shares", sharesHandler.Routes)

	return &Service{router: r, conf: &c, log: log}, nil
}

func healthChecks(d *deps.Deps) []api.HealthCheck {
	var checks []api.HealthCheck
	if d.Store != nil {
		checks = append(checks, d.Store.Ping)
	}
	if p, ok := d.Blob.(blob.Pinger); ok {
		checks = append(checks, func(ctx context.Context) error { return p.Ping(ctx) })
	}
	return checks
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Prefix returns the URL prefix for this service.
func (s *Service) Prefix() string {
	return "api"
}

// Unprotected returns paths that don't require session authentication.
func (s *Service) Unprotected() []string {
	return []string{"/healthz", "/auth/login", "/auth/register"}
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}
