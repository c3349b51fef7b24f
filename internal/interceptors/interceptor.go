// Package interceptors holds named HTTP middleware that services opt into
// from their [http.services.<svc>] config.
package interceptors

import (
	"log/slog"
	"net/http"
)

// Middleware is an HTTP middleware function.
type Middleware func(http.Handler) http.Handler

// NewInterceptor builds a middleware from a profile config map.
type NewInterceptor func(conf map[string]any, log *slog.Logger) (Middleware, error)
