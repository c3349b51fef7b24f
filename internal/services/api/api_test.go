package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/interceptors/ratelimit"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/blob/local"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/cache/memory"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store/storetest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupTestDeps wires identity, an in-memory cache and a sqlite-backed share
// manager into the shared deps.
func setupTestDeps(t *testing.T) *deps.Deps {
	t.Helper()
	deps.ResetDeps()
	t.Cleanup(deps.ResetDeps)

	drv := storetest.OpenSQLite(t)
	blobs, err := local.New(local.Config{Root: t.TempDir()}, nil)
	require.NoError(t, err)

	mc := memory.New(time.Minute, 0)
	t.Cleanup(func() { mc.Close() })
	tp, _ := realip.NewTrustedProxies(nil)

	d := &deps.Deps{
		PartyRepo:   identity.NewMemoryPartyRepo(),
		SessionRepo: identity.NewMemorySessionRepo(),
		UserAuth:    identity.NewUserAuthFast(),
		Store:       drv,
		Blob:        blobs,
		Shares:      shares.NewManager(drv.Shares(), blobs, 1<<20, nil),
		Config:      config.DevConfig(),
		Cache:       mc,
		RealIP:      tp,
	}
	deps.SetDeps(d)
	return d
}

func addUser(t *testing.T, d *deps.Deps, username, password string) {
	t.Helper()
	hash, err := d.UserAuth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, d.PartyRepo.Create(context.Background(), &identity.User{
		Username:     username,
		PasswordHash: hash,
		Role:         identity.RoleUser,
	}))
}

func newService(t *testing.T, m map[string]any) *Service {
	t.Helper()
	svc, err := New(m, quietLogger())
	require.NoError(t, err)
	return svc.(*Service)
}

func postJSON(h http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_FailsWithoutSharedDeps(t *testing.T) {
	deps.ResetDeps()

	_, err := New(map[string]any{}, quietLogger())
	assert.Error(t, err, "expected error when shared deps are not initialized")
}

func TestNew_FailsWithoutShareManager(t *testing.T) {
	d := setupTestDeps(t)
	d.Shares = nil

	_, err := New(map[string]any{}, quietLogger())
	assert.Error(t, err)
}

func TestService_Surface(t *testing.T) {
	setupTestDeps(t)
	svc := newService(t, map[string]any{})

	assert.Equal(t, "api", svc.Prefix())
	assert.ElementsMatch(t, []string{"/healthz", "/auth/login", "/auth/register"}, svc.Unprotected())
	assert.NotNil(t, svc.Handler())
	assert.NoError(t, svc.Close())
}

func TestConfig_Defaults(t *testing.T) {
	setupTestDeps(t)
	svc := newService(t, map[string]any{})

	assert.Equal(t, 24*60*60, svc.conf.SessionTTLSeconds)
	assert.False(t, svc.conf.AllowRegistration)
	assert.Empty(t, svc.conf.Ratelimit.Profile)
}

func TestService_HealthzEndpoint(t *testing.T) {
	setupTestDeps(t)
	svc := newService(t, map[string]any{})

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

type failingPing struct{ *local.Store }

func (failingPing) Ping(context.Context) error { return errors.New("backend down") }

func TestService_HealthzDegradedWhenBlobStoreDown(t *testing.T) {
	d := setupTestDeps(t)
	d.Blob = failingPing{d.Blob.(*local.Store)}
	svc := newService(t, map[string]any{})

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestService_LoginEndpoint_MissingCredentials(t *testing.T) {
	setupTestDeps(t)
	svc := newService(t, map[string]any{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestService_LoginAndListShares(t *testing.T) {
	d := setupTestDeps(t)
	addUser(t, d, "alice", "correct horse")
	svc := newService(t, map[string]any{"public_origin": "https://files.example.com"})

	rec := postJSON(svc.Handler(), "/auth/login", map[string]string{"username": "alice", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Token)

	// The gate normally resolves the user; without it the share API refuses.
	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shares", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestService_RegisterFollowsConfig(t *testing.T) {
	setupTestDeps(t)
	body := map[string]string{
		"username":         "carol",
		"password":         "long enough password",
		"password_confirm": "long enough password",
		"email":            "carol@example.com",
	}

	closed := newService(t, map[string]any{})
	rec := postJSON(closed.Handler(), "/auth/register", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	open := newService(t, map[string]any{"allow_registration": true})
	rec = postJSON(open.Handler(), "/auth/register", body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestService_RatelimitAppliesToLoginOnly(t *testing.T) {
	d := setupTestDeps(t)
	d.Config.HTTP.Interceptors = map[string]map[string]any{
		"ratelimit": {"profiles": map[string]any{
			"tight": map[string]any{"requests_per_window": int64(1), "window_seconds": int64(60)},
		}},
	}
	svc := newService(t, map[string]any{"ratelimit": map[string]any{"profile": "tight"}})

	creds := map[string]string{"username": "nobody", "password": "wrong"}
	first := postJSON(svc.Handler(), "/auth/login", creds)
	assert.Equal(t, http.StatusUnauthorized, first.Code)
	second := postJSON(svc.Handler(), "/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code, "healthz must not be limited")
	}
}

func TestNew_UndefinedRatelimitProfileFails(t *testing.T) {
	setupTestDeps(t)

	_, err := New(map[string]any{"ratelimit": map[string]any{"profile": "missing"}}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestNew_WarnsOnUnusedConfigKeys(t *testing.T) {
	setupTestDeps(t)

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	_, err := New(map[string]any{"unknown_key": "value"}, log)
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "unused config keys"))
}
