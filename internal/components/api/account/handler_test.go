package account_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/api"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/api/account"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/auth"
)

type env struct {
	parties  *identity.MemoryPartyRepo
	sessions *identity.MemorySessionRepo
	router   http.Handler
}

func newEnv(t *testing.T, allowRegistration bool) *env {
	t.Helper()
	e := &env{
		parties:  identity.NewMemoryPartyRepo(),
		sessions: identity.NewMemorySessionRepo(),
	}
	ua := identity.NewUserAuthFast()
	_, err := ua.Register(context.Background(), e.parties, identity.Registration{
		Username: "alice", Password: "correct horse", PasswordConfirm: "correct horse", Email: "alice@example.com",
	})
	require.NoError(t, err)

	h := account.NewHandler(e.parties, e.sessions, ua, time.Hour, allowRegistration)
	r := chi.NewRouter()
	r.Use(auth.NewGate(auth.GateConfig{
		RequireAuth: func(path string) bool { return path == "/api/auth/me" },
		SessionRepo: e.sessions,
		PartyRepo:   e.parties,
	}))
	r.Post("/api/auth/login", h.Login)
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/logout", h.Logout)
	r.Get("/api/auth/me", h.Me)
	e.router = r
	return e
}

func (e *env) post(path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *env) me(token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	e := newEnv(t, false)

	rr := e.post("/api/auth/login", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp account.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Username)

	c := sessionCookie(rr)
	require.NotNil(t, c)
	assert.Equal(t, resp.Token, c.Value)
	assert.True(t, c.HttpOnly)

	me := e.me(resp.Token)
	require.Equal(t, http.StatusOK, me.Code)
	var user account.UserView
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &user))
	assert.Equal(t, resp.User.ID, user.ID)
}

func TestLogin_Rejections(t *testing.T) {
	e := newEnv(t, false)

	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"wrong password", `{"username":"alice","password":"nope nope"}`, http.StatusUnauthorized, api.ReasonInvalidCredentials},
		{"unknown user", `{"username":"mallory","password":"correct horse"}`, http.StatusUnauthorized, api.ReasonInvalidCredentials},
		{"missing fields", `{"username":"alice"}`, http.StatusBadRequest, api.ReasonMissingField},
		{"bad json", `{`, http.StatusBadRequest, api.ReasonBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.post("/api/auth/login", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			var env api.ErrorEnvelope
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
			assert.Equal(t, tt.reason, env.Error.ReasonCode)
			assert.Nil(t, sessionCookie(rr))
		})
	}
}

func TestLogout(t *testing.T) {
	e := newEnv(t, false)
	login := e.post("/api/auth/login", `{"username":"alice","password":"correct horse"}`)
	c := sessionCookie(login)
	require.NotNil(t, c)

	rr := e.post("/api/auth/logout", "", c)
	require.Equal(t, http.StatusOK, rr.Code)
	cleared := sessionCookie(rr)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	assert.Equal(t, http.StatusUnauthorized, e.me(c.Value).Code)
	assert.Equal(t, http.StatusUnauthorized, e.post("/api/auth/logout", "").Code)
}

func TestMe_RequiresSession(t *testing.T) {
	e := newEnv(t, false)
	assert.Equal(t, http.StatusUnauthorized, e.me("").Code)
	assert.Equal(t, http.StatusUnauthorized, e.me("forged").Code)
}

func TestRegister_Disabled(t *testing.T) {
	e := newEnv(t, false)
	rr := e.post("/api/auth/register", `{"username":"bob","password":"s3cret-pass","password_confirm":"s3cret-pass","email":"bob@example.com"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	var env api.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, api.ReasonRegistrationDisabled, env.Error.ReasonCode)
}

func TestRegister(t *testing.T) {
	e := newEnv(t, true)

	rr := e.post("/api/auth/register", `{"username":"bob","password":"s3cret-pass","password_confirm":"s3cret-pass","email":"bob@example.com"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp account.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "bob", resp.User.Username)
	assert.Equal(t, "bob", resp.User.DisplayName)
	assert.Equal(t, identity.RoleUser, resp.User.Role)
	assert.NotNil(t, sessionCookie(rr))
	assert.Equal(t, http.StatusOK, e.me(resp.Token).Code)
}

func TestRegister_Rejections(t *testing.T) {
	e := newEnv(t, true)

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"taken username", `{"username":"alice","password":"s3cret-pass","password_confirm":"s3cret-pass","email":"a2@example.com"}`, http.StatusConflict, ""},
		{"taken email", `{"username":"carol","password":"s3cret-pass","password_confirm":"s3cret-pass","email":"ALICE@example.com"}`, http.StatusConflict, ""},
		{"mismatch", `{"username":"carol","password":"s3cret-pass","password_confirm":"other-pass","email":"c@example.com"}`, http.StatusBadRequest, "password_confirm"},
		{"short password", `{"username":"carol","password":"short","password_confirm":"short","email":"c@example.com"}`, http.StatusBadRequest, "password"},
		{"missing email", `{"username":"carol","password":"s3cret-pass","password_confirm":"s3cret-pass"}`, http.StatusBadRequest, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.post("/api/auth/register", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.field != "" {
				var env api.ErrorEnvelope
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
				require.Len(t, env.Error.Fields, 1)
				assert.Equal(t, tt.field, env.Error.Fields[0].Field)
			}
		})
	}
}
