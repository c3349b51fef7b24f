// Package account implements the identity endpoints: register, login,
// logout and the current-user lookup.
package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/api"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/auth"
)

// DefaultSessionTTL applies when no lifetime is configured.
const DefaultSessionTTL = 24 * time.Hour

// Handler serves /api/auth.
type Handler struct {
	repo              identity.PartyRepo
	sessions          identity.SessionRepo
	auth              *identity.UserAuth
	sessionTTL        time.Duration
	allowRegistration bool
}

// NewHandler creates the account handler. A zero ttl selects
// DefaultSessionTTL.
func NewHandler(repo identity.PartyRepo, sessions identity.SessionRepo, ua *identity.UserAuth, ttl time.Duration, allowRegistration bool) *Handler {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Handler{
		repo:              repo,
		sessions:          sessions,
		auth:              ua,
		sessionTTL:        ttl,
		allowRegistration: allowRegistration,
	}
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Email           string `json:"email"`
	DisplayName     string `json:"display_name"`
}

// UserView is the public shape of a user.
type UserView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
}

// LoginResponse is returned by login and register.
type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      UserView `json:"user"`
}

func viewOf(u *identity.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Email: u.Email, Role: u.Role}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "username and password required")
		return
	}

	user, err := h.auth.Authenticate(r.Context(), h.repo, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			appctx.GetLogger(r.Context()).Error("login failed", "error", err)
		}
		api.WriteUnauthorized(w, api.ReasonInvalidCredentials, "invalid username or password")
		return
	}
	h.startSession(w, r, user, http.StatusOK)
}

// Register handles POST /api/auth/register. The new user is logged in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowRegistration {
		api.WriteForbidden(w, api.ReasonRegistrationDisabled, "registration is disabled")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}

	user, err := h.auth.Register(r.Context(), h.repo, identity.Registration{
		Username:        req.Username,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Email:           req.Email,
		DisplayName:     strings.TrimSpace(req.DisplayName),
	})
	var verr *identity.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]api.FieldError, len(verr.Fields))
		for i, f := range verr.Fields {
			reason := api.ReasonInvalidField
			if f.Message == "required" {
				reason = api.ReasonMissingField
			}
			fields[i] = api.FieldError{Field: f.Field, ReasonCode: reason, Message: f.Message}
		}
		api.WriteValidationError(w, "invalid registration", fields)
		return
	case errors.Is(err, identity.ErrUserExists):
		api.WriteConflict(w, "username is taken")
		return
	case errors.Is(err, identity.ErrEmailExists):
		api.WriteConflict(w, "email is already registered")
		return
	case err != nil:
		appctx.GetLogger(r.Context()).Error("registration failed", "error", err)
		api.WriteInternalError(w, "registration failed")
		return
	}

	appctx.GetLogger(r.Context()).Info("user registered", "user_id", user.ID)
	h.startSession(w, r, user, http.StatusCreated)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *identity.User, status int) {
	session, err := h.sessions.Create(r.Context(), user.ID, h.sessionTTL)
	if err != nil {
		appctx.GetLogger(r.Context()).Error("session create failed", "error", err)
		api.WriteInternalError(w, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	api.WriteJSON(w, status, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		User:      viewOf(user),
	})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractSessionToken(r)
	if token == "" {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "no session token provided")
		return
	}
	if err := h.sessions.Delete(r.Context(), token); err != nil {
		appctx.GetLogger(r.Context()).Warn("session delete failed", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		MaxAge:   -1,
	})
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me handles GET /api/auth/me. The session gate has already resolved the
// user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}
	api.WriteJSON(w, http.StatusOK, viewOf(user))
}
