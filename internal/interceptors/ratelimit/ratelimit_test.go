package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/fileshare-go/internal/interceptors"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/cache/memory"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/realip"
)

type failingCounter struct{}

func (failingCounter) Increment(context.Context, string, int64, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("backend down")
}
func (failingCounter) GetCount(context.Context, string) (int64, error) { return 0, nil }
func (failingCounter) Reset(context.Context, string) error             { return nil }

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest("GET", "/download/abc", nil)
	return req.WithContext(appctx.WithClientIP(req.Context(), ip))
}

func TestRegistered(t *testing.T) {
	_, ok := interceptors.Get("ratelimit")
	assert.True(t, ok)
}

func TestConfigApplyDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"empty", Config{}, Config{Profile: "default", RequestsPerWindow: 100, WindowSeconds: 60}},
		{"partial", Config{RequestsPerWindow: 5}, Config{Profile: "default", RequestsPerWindow: 5, WindowSeconds: 60}},
		{"full", Config{Profile: "auth", RequestsPerWindow: 10, WindowSeconds: 30}, Config{Profile: "auth", RequestsPerWindow: 10, WindowSeconds: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.ApplyDefaults()
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestLimiter_BlocksOverLimit(t *testing.T) {
	mc := memory.New(time.Minute, 0)
	defer mc.Close()
	h := NewLimiter(mc, Config{Profile: "download", RequestsPerWindow: 3, WindowSeconds: 60}, nil).Wrap(okHandler)

	for i := 1; i <= 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("203.0.113.1"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(3-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("203.0.113.1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body struct {
		Error struct {
			ReasonCode string `json:"reason_code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body.Error.ReasonCode)

	// other clients have their own window
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("203.0.113.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimiter_ProfilesDoNotShareCounters(t *testing.T) {
	mc := memory.New(time.Minute, 0)
	defer mc.Close()
	auth := NewLimiter(mc, Config{Profile: "auth", RequestsPerWindow: 1}, nil).Wrap(okHandler)
	download := NewLimiter(mc, Config{Profile: "download", RequestsPerWindow: 1}, nil).Wrap(okHandler)

	rec := httptest.NewRecorder()
	auth.ServeHTTP(rec, requestFrom("198.51.100.4"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	download.ServeHTTP(rec, requestFrom("198.51.100.4"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimiter_FailsOpen(t *testing.T) {
	h := NewLimiter(failingCounter{}, Config{RequestsPerWindow: 1}, nil).Wrap(okHandler)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("203.0.113.1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestWithKeyFunc(t *testing.T) {
	mc := memory.New(time.Minute, 0)
	defer mc.Close()
	base := NewLimiter(mc, Config{RequestsPerWindow: 1}, nil)
	h := base.WithKeyFunc(func(*http.Request) string { return "everyone" }).Wrap(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("203.0.113.1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestNew_UsesSharedDeps(t *testing.T) {
	deps.ResetDeps()
	t.Cleanup(deps.ResetDeps)

	_, err := New(map[string]any{"requests_per_window": int64(1)}, nil)
	require.Error(t, err, "expected error without shared cache")

	mc := memory.New(time.Minute, 0)
	defer mc.Close()
	tp, _ := realip.NewTrustedProxies(nil)
	deps.SetDeps(&deps.Deps{Cache: mc, RealIP: tp})

	mw, err := New(map[string]any{"profile": "download", "requests_per_window": int64(1)}, nil)
	require.NoError(t, err)
	h := mw(okHandler)

	// no client ip on the context: falls back to the peer address
	req := httptest.NewRequest("GET", "/download/abc", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	n, err := mc.GetCount(context.Background(), "ratelimit:download:192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
