// Package middleware provides always-on transport middleware for HTTP servers.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

// tokenPathPrefixes are route prefixes whose next segment is a share token.
var tokenPathPrefixes = []string{"/download/", "/api/shares/"}

// RedactPath shortens share tokens embedded in a request path.
func RedactPath(path string, allowSensitive bool) string {
	if allowSensitive {
		return path
	}
	for _, prefix := range tokenPathPrefixes {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		token, tail, _ := strings.Cut(rest, "/")
		if token == "" {
			return path
		}
		out := prefix + logutil.RedactToken(token, false)
		if len(rest) > len(token) {
			out += "/" + tail
		}
		return out
	}
	return path
}

// RequestLoggerMiddleware attaches a request-scoped logger and the resolved
// client address to the request context.
//
// Must run after chi's RequestID so GetReqID returns a value.
func RequestLoggerMiddleware(base *slog.Logger, trustedProxies *realip.TrustedProxies, allowSensitive bool) func(http.Handler) http.Handler {
	base = logutil.NoopIfNil(base)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := "unknown"
			if trustedProxies != nil {
				clientIP = trustedProxies.ClientIP(r)
			}

			reqLogger := base.With(
				"request_id", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", RedactPath(r.URL.Path, allowSensitive),
				"client_ip", clientIP,
			)

			ctx := appctx.WithLogger(r.Context(), reqLogger)
			ctx = appctx.WithClientIP(ctx, clientIP)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
