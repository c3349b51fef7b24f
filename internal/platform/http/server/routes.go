package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/api"
	"github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/auth"
	httpmw "github.com/MahdiBaghbani/fileshare-go/internal/platform/http/middleware"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
}

// routeGroups is the single source of truth for gating decisions.
// Services carve public exceptions out of a gated group via Unprotected().
var routeGroups = []RouteGroup{
	{Name: "download", PathPrefix: "/download", RequiresAuth: false}, // anyone holding the token
	{Name: "api", PathPrefix: "/api", RequiresAuth: true},
}

// mountOrder fixes the order services are mounted and, reversed, closed.
var mountOrder = []string{"download", "api"}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// IsAuthRequired reports whether path needs a session. Unprotected paths of
// mounted services win over the route table; unknown paths require auth.
func IsAuthRequired(path string, mountedServices []service.Service) bool {
	for _, svc := range mountedServices {
		if svc == nil {
			continue
		}
		svcBase := ""
		if prefix := svc.Prefix(); prefix != "" {
			svcBase = "/" + prefix
		}
		for _, unprotected := range svc.Unprotected() {
			if pathMatchesPrefix(path, svcBase+unprotected) {
				return false
			}
		}
	}

	for _, rg := range routeGroups {
		if pathMatchesPrefix(path, rg.PathPrefix) {
			return rg.RequiresAuth
		}
	}

	return true
}

// mountService mounts a service and tracks it for lifecycle management.
func (s *Server) mountService(r chi.Router, svc service.Service) {
	if svc == nil {
		return
	}

	if prefix := svc.Prefix(); prefix == "" {
		r.Mount("/", svc.Handler())
	} else {
		r.Mount("/"+prefix, svc.Handler())
	}

	s.mountedServices = append(s.mountedServices, svc)
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		if path[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// setupRoutes creates the chi router with every configured service mounted.
func (s *Server) setupRoutes() chi.Router {
	d := deps.GetDeps()
	r := chi.NewRouter()

	// Always-on transport middleware (order is invariant):
	// RequestID -> request-scoped logger -> access log -> recoverer -> auth gate
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger, d.RealIP, s.cfg.Logging.AllowSensitive))
	r.Use(httpmw.AccessLogMiddleware(s.logger))
	r.Use(chimw.Recoverer)

	// The closure reads s.mountedServices at request time.
	requireAuth := func(path string) bool {
		return IsAuthRequired(path, s.mountedServices)
	}
	r.Use(auth.NewGate(auth.GateConfig{
		RequireAuth: requireAuth,
		Log:         s.logger,
		SessionRepo: d.SessionRepo,
		PartyRepo:   d.PartyRepo,
	}))

	for _, name := range mountOrder {
		s.mountService(r, s.services[name])
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteNotFound(w, "not found")
	})

	return r
}
