// Package auth provides the session gate middleware and the request-scoped
// principal accessors.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/api"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

// SessionCookie is the cookie carrying the session token for browsers.
const SessionCookie = "fileshare_session"

type contextKey string

const (
	sessionContextKey contextKey = "session"
	userContextKey    contextKey = "user"
)

// GateConfig configures the session gate.
type GateConfig struct {
	// RequireAuth reports whether a path needs a session. Built by the server
	// from each service's Unprotected list.
	RequireAuth func(path string) bool

	Log *slog.Logger

	// SessionRepo and PartyRepo may be nil only if RequireAuth is always false.
	SessionRepo identity.SessionRepo
	PartyRepo   identity.PartyRepo
}

// NewGate returns middleware that rejects protected requests without a valid
// session and stores the session and user on the context otherwise.
// Public paths pass through untouched.
func NewGate(cfg GateConfig) func(http.Handler) http.Handler {
	cfg.Log = logutil.NoopIfNil(cfg.Log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.RequireAuth == nil || !cfg.RequireAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractSessionToken(r)
			if token == "" {
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
				return
			}

			ctx := r.Context()
			session, err := cfg.SessionRepo.Get(ctx, token)
			switch {
			case errors.Is(err, identity.ErrSessionExpired):
				api.WriteUnauthorized(w, api.ReasonSessionExpired, "session has expired")
				return
			case errors.Is(err, identity.ErrSessionNotFound):
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "session not found or expired")
				return
			case err != nil:
				appctx.GetLogger(ctx).Error("session lookup failed", "error", err)
				api.WriteInternalError(w, "session lookup failed")
				return
			}

			user, err := cfg.PartyRepo.Get(ctx, session.UserID)
			if err != nil {
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "session user not found")
				return
			}

			ctx = context.WithValue(ctx, sessionContextKey, session)
			ctx = context.WithValue(ctx, userContextKey, user)
			ctx = appctx.WithLogger(ctx, appctx.GetLogger(ctx).With("user_id", user.ID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractSessionToken reads the bearer token, falling back to the cookie.
func ExtractSessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// WithUser returns a context carrying user. Used by handlers' tests and by
// callers that authenticate outside the gate.
func WithUser(ctx context.Context, user *identity.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func GetSessionFromContext(ctx context.Context) *identity.Session {
	s, _ := ctx.Value(sessionContextKey).(*identity.Session)
	return s
}

// GetUserFromContext returns the authenticated user or nil.
func GetUserFromContext(ctx context.Context) *identity.User {
	u, _ := ctx.Value(userContextKey).(*identity.User)
	return u
}
