// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"

	tlspkg "github.com/MahdiBaghbani/fileshare-go/internal/platform/http/tls"
)

var ErrMissingSharedDeps = errors.New("shared deps not initialized: call deps.SetDeps() before server.New()")

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	services   map[string]service.Service // keyed by service name (download, api)

	// mountedServices tracks services for lifecycle management (Close on shutdown).
	// Stored in mount order; closed in reverse order during shutdown.
	mountedServices []service.Service
}

// New creates a new Server with the given configuration.
// Services are passed as a name->service map; nil entries are skipped at mount time.
// All dependencies are obtained from deps.GetDeps().
func New(cfg *config.Config, logger *slog.Logger, services map[string]service.Service) (*Server, error) {
	logger = logutil.NoopIfNil(logger)

	// Fail fast: shared deps must be initialized before server creation
	if deps.GetDeps() == nil {
		return nil, ErrMissingSharedDeps
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		services: services,
	}

	// WriteTimeout is left at zero: downloads stream files of arbitrary size.
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the root router. Used by tests and embedding callers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"public_origin", s.cfg.PublicOrigin,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "off", "":
		return s.httpServer.ListenAndServe()

	case "static", "selfsigned":
		tlsManager := tlspkg.NewTLSManager(&s.cfg.TLS, s.logger)
		tlsConfig, err := tlsManager.GetTLSConfig(tlsHostname(s.cfg.PublicOrigin))
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		if tlsConfig == nil {
			return fmt.Errorf("TLS config is nil for mode %s", s.cfg.TLS.Mode)
		}

		s.httpServer.TLSConfig = tlsConfig
		// Empty file names: certificates come from TLSConfig.Certificates.
		return s.httpServer.ListenAndServeTLS("", "")

	default:
		return fmt.Errorf("%w: %s", tlspkg.ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// tlsHostname is the host of the public origin, or localhost.
func tlsHostname(publicOrigin string) string {
	if u, err := url.Parse(publicOrigin); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "localhost"
}

// Shutdown gracefully shuts down the server and all mounted services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	httpErr := s.httpServer.Shutdown(ctx)

	// Close services in reverse mount order (last mounted = first closed)
	for i := len(s.mountedServices) - 1; i >= 0; i-- {
		svc := s.mountedServices[i]
		prefix := svc.Prefix()
		if prefix == "" {
			prefix = "(root)"
		}
		if err := svc.Close(); err != nil {
			// Best effort: keep closing the rest.
			s.logger.Warn("service close error", "service", prefix, "error", err)
		} else {
			s.logger.Debug("service closed", "service", prefix)
		}
	}

	return httpErr
}
