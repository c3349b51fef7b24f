// Package download provides the anonymous /download/{token} endpoint.
package download

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/gateway"
	"github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/fileshare-go/internal/interceptors"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
)

func init() {
	service.MustRegister("download", New)
}

// Config holds download service configuration.
type Config struct {
	Ratelimit RatelimitConfig `mapstructure:"ratelimit"`
}

// RatelimitConfig names the [http.interceptors.ratelimit.profiles.<name>]
// applied to every download request.
type RatelimitConfig struct {
	Profile string `mapstructure:"profile"`
}

// Service serves share downloads. It never requires a session.
type Service struct {
	router chi.Router
	log    *slog.Logger
}

// New creates the download service from the shared gateway.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "download", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Gateway == nil {
		return nil, errors.New("download: gateway not initialized")
	}

	r := chi.NewRouter()

	if c.Ratelimit.Profile != "" {
		var interceptorsCfg map[string]map[string]any
		if d.Config != nil {
			interceptorsCfg = d.Config.HTTP.Interceptors
		}
		mw, err := interceptors.Build(interceptorsCfg, "ratelimit", c.Ratelimit.Profile, log)
		if err != nil {
			return nil, fmt.Errorf("download: %w", err)
		}
		r.Use(mw)
	}

	h := gateway.NewHandler(d.Gateway)
	r.Get("/{token}", h.ServeHTTP)
	r.Get("/{token}/", h.ServeHTTP)

	return &Service{router: r, log: log}, nil
}

func (s *Service) Handler() http.Handler { return s.router }

func (s *Service) Prefix() string { return "download" }

// Unprotected is empty: the route table marks the whole prefix public.
func (s *Service) Unprotected() []string { return nil }

func (s *Service) Close() error { return nil }
