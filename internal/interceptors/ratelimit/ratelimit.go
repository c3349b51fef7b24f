// Package ratelimit provides a fixed-window rate limiting interceptor backed
// by the cache counter.
package ratelimit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/api"
	svccfg "github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/fileshare-go/internal/interceptors"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/cache"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

var errNoCounter = errors.New("ratelimit: shared cache not initialized")

func init() {
	interceptors.Register("ratelimit", New)
}

// Config is one [http.interceptors.ratelimit.profiles.<name>] table.
type Config struct {
	Profile           string `mapstructure:"profile"`
	RequestsPerWindow int64  `mapstructure:"requests_per_window"`
	WindowSeconds     int    `mapstructure:"window_seconds"`
}

func (c *Config) ApplyDefaults() {
	if c.Profile == "" {
		c.Profile = "default"
	}
	if c.RequestsPerWindow == 0 {
		c.RequestsPerWindow = 100
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 60
	}
}

// Limiter counts requests per client key within a window.
type Limiter struct {
	counter cache.Counter
	keyFunc func(*http.Request) string
	prefix  string
	limit   int64
	window  time.Duration
	log     *slog.Logger
}

// New builds the interceptor from a profile config. The counter comes from
// the shared deps; clients are keyed by the address resolved upstream by the
// request logger middleware.
func New(conf map[string]any, log *slog.Logger) (interceptors.Middleware, error) {
	var c Config
	if err := svccfg.Decode(conf, &c); err != nil {
		return nil, err
	}

	d := deps.GetDeps()
	if d == nil || d.Cache == nil {
		return nil, errNoCounter
	}

	l := NewLimiter(d.Cache, c, log)
	if d.RealIP != nil {
		l.keyFunc = func(r *http.Request) string {
			if ip := appctx.ClientIP(r.Context()); ip != "unknown" {
				return ip
			}
			return d.RealIP.ClientIP(r)
		}
	}
	return l.Wrap, nil
}

// NewLimiter returns a Limiter keyed by the context client IP.
func NewLimiter(counter cache.Counter, c Config, log *slog.Logger) *Limiter {
	c.ApplyDefaults()
	return &Limiter{
		counter: counter,
		keyFunc: func(r *http.Request) string { return appctx.ClientIP(r.Context()) },
		prefix:  "ratelimit:" + c.Profile + ":",
		limit:   c.RequestsPerWindow,
		window:  time.Duration(c.WindowSeconds) * time.Second,
		log:     logutil.NoopIfNil(log),
	}
}

// Wrap applies the limit. Counter failures let the request through.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, resetAt, err := l.counter.Increment(r.Context(), l.prefix+l.keyFunc(r), 1, l.window)
		if err != nil {
			appctx.GetLogger(r.Context()).Warn("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := l.limit - count
		if remaining < 0 {
			remaining = 0
		}
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > l.limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			appctx.GetLogger(r.Context()).Info("rate limited", "count", count, "limit", l.limit)
			api.WriteTooManyRequests(w, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithKeyFunc returns a copy of the limiter keyed by fn.
func (l *Limiter) WithKeyFunc(fn func(*http.Request) string) *Limiter {
	cp := *l
	cp.keyFunc = fn
	return &cp
}
