// Package shares implements the session-gated owner API for share links:
// upload, list with dashboard stats, detail with recent access, toggle and
// delete.
package shares

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/api"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/auth"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to a temp file.
const multipartMemory = 8 << 20

// formOverhead is allowed on top of the upload limit for the other fields
// and multipart framing.
const formOverhead = 1 << 20

// Handler serves /api/shares.
type Handler struct {
	mgr          *shares.Manager
	publicOrigin string
}

// NewHandler creates the owner handler. publicOrigin prefixes download
// URLs; when empty the request host is used.
func NewHandler(mgr *shares.Manager, publicOrigin string) *Handler {
	return &Handler{mgr: mgr, publicOrigin: strings.TrimRight(publicOrigin, "/")}
}

// ShareView is the owner's view of a record.
type ShareView struct {
	ID                 string    `json:"id"`
	Token              string    `json:"token"`
	DownloadURL        string    `json:"download_url"`
	OriginalFilename   string    `json:"original_filename"`
	Description        string    `json:"description"`
	ContentType        string    `json:"content_type"`
	SizeBytes          int64     `json:"size_bytes"`
	ExpiryHours        int       `json:"expiry_hours"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	IsActive           bool      `json:"is_active"`
	MaxDownloads       int       `json:"max_downloads"`
	DownloadCount      int       `json:"download_count"`
	RemainingDownloads *int      `json:"remaining_downloads"`
	Status             string    `json:"status"`
}

// ListResponse is the body of GET /api/shares.
type ListResponse struct {
	Shares []ShareView   `json:"shares"`
	Stats  shares.Stats `json:"stats"`
}

// AccessView is one access log row.
type AccessView struct {
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	DownloadedAt time.Time `json:"downloaded_at"`
	Success      bool      `json:"success"`
}

// DetailResponse is the body of GET /api/shares/{token}.
type DetailResponse struct {
	Share        ShareView    `json:"share"`
	RecentAccess []AccessView `json:"recent_access"`
}

// ToggleResponse is the body of POST /api/shares/{token}/toggle.
type ToggleResponse struct {
	IsActive bool `json:"is_active"`
}

func status(rec *shares.ShareRecord, now time.Time) string {
	switch {
	case !rec.IsActive:
		return "inactive"
	case rec.Expired(now):
		return "expired"
	case rec.LimitReached():
		return "limit_reached"
	default:
		return "active"
	}
}

func (h *Handler) view(r *http.Request, rec *shares.ShareRecord) ShareView {
	v := ShareView{
		ID:               rec.ID,
		Token:            rec.Token,
		DownloadURL:      h.downloadURL(r, rec.Token),
		OriginalFilename: rec.OriginalFilename,
		Description:      rec.Description,
		ContentType:      rec.ContentType,
		SizeBytes:        rec.SizeBytes,
		ExpiryHours:      rec.ExpiryHours,
		CreatedAt:        rec.CreatedAt,
		ExpiresAt:        rec.ExpiresAt,
		IsActive:         rec.IsActive,
		MaxDownloads:     rec.MaxDownloads,
		DownloadCount:    rec.DownloadCount,
		Status:           status(rec, h.mgr.Now()),
	}
	if n := rec.RemainingDownloads(); n >= 0 {
		v.RemainingDownloads = &n
	}
	return v
}

func (h *Handler) downloadURL(r *http.Request, token string) string {
	origin := h.publicOrigin
	if origin == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		origin = scheme + "://" + r.Host
	}
	return origin + "/download/" + token + "/"
}

func currentUser(w http.ResponseWriter, r *http.Request) *identity.User {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
	}
	return user
}

// HandleCreate handles POST /api/shares (multipart: file, description,
// expiry_hours, max_downloads).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	log := appctx.GetLogger(r.Context())

	if limit := h.mgr.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			api.WriteError(w, http.StatusRequestEntityTooLarge, api.ReasonPayloadTooLarge, "upload exceeds the size limit")
			return
		}
		api.WriteBadRequest(w, api.ReasonBadRequest, "expected a multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var fields []api.FieldError
	expiry, ok := formInt(r, "expiry_hours")
	if !ok {
		fields = append(fields, api.FieldError{Field: "expiry_hours", ReasonCode: api.ReasonInvalidField, Message: "must be a whole number of hours"})
	}
	maxDownloads, ok := formInt(r, "max_downloads")
	if !ok {
		fields = append(fields, api.FieldError{Field: "max_downloads", ReasonCode: api.ReasonInvalidField, Message: "must be a whole number"})
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		fields = append(fields, api.FieldError{Field: "file", ReasonCode: api.ReasonMissingField, Message: "a file is required"})
	}
	if len(fields) > 0 {
		if file != nil {
			file.Close()
		}
		api.WriteValidationError(w, "invalid upload", fields)
		return
	}
	defer file.Close()

	rec, err := h.mgr.Create(r.Context(), user.ID, shares.CreateParams{
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Description:  strings.TrimSpace(r.FormValue("description")),
		ExpiryHours:  expiry,
		MaxDownloads: maxDownloads,
	}, file)
	if err != nil {
		var verr *shares.ValidationError
		if errors.As(err, &verr) {
			api.WriteValidationError(w, "invalid upload", toFieldErrors(verr))
			return
		}
		log.Error("share create failed", "error", err)
		api.WriteInternalError(w, "could not store the upload")
		return
	}

	api.WriteJSON(w, http.StatusCreated, h.view(r, rec))
}

// formInt parses an optional integer field; absent means 0.
func formInt(r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func toFieldErrors(verr *shares.ValidationError) []api.FieldError {
	out := make([]api.FieldError, len(verr.Fields))
	for i, f := range verr.Fields {
		out[i] = api.FieldError{Field: f.Field, ReasonCode: f.Reason, Message: f.Message}
	}
	return out
}

// HandleList handles GET /api/shares.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	ctx := r.Context()

	recs, err := h.mgr.ListForOwner(ctx, user.ID)
	if err != nil {
		appctx.GetLogger(ctx).Error("list shares failed", "error", err)
		api.WriteInternalError(w, "could not list shares")
		return
	}
	stats, err := h.mgr.Stats(ctx, user.ID)
	if err != nil {
		appctx.GetLogger(ctx).Error("share stats failed", "error", err)
		api.WriteInternalError(w, "could not list shares")
		return
	}

	resp := ListResponse{Shares: make([]ShareView, len(recs)), Stats: stats}
	for i, rec := range recs {
		resp.Shares[i] = h.view(r, rec)
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// lookup resolves {token} for the current user. Any ownership mismatch is a
// 404.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) *shares.ShareRecord {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	rec, err := h.mgr.GetByTokenForOwner(r.Context(), chi.URLParam(r, "token"), user.ID)
	if errors.Is(err, shares.ErrNotFound) {
		api.WriteNotFound(w, "share not found")
		return nil
	}
	if err != nil {
		appctx.GetLogger(r.Context()).Error("share lookup failed", "error", err)
		api.WriteInternalError(w, "share lookup failed")
		return nil
	}
	return rec
}

// HandleGet handles GET /api/shares/{token}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec := h.lookup(w, r)
	if rec == nil {
		return
	}
	entries, err := h.mgr.RecentAccess(r.Context(), rec, shares.DetailAccessEntries)
	if err != nil {
		appctx.GetLogger(r.Context()).Error("access log read failed", "error", err)
		api.WriteInternalError(w, "could not load access log")
		return
	}

	resp := DetailResponse{Share: h.view(r, rec), RecentAccess: make([]AccessView, len(entries))}
	for i, e := range entries {
		resp.RecentAccess[i] = AccessView{
			IPAddress:    e.IPAddress,
			UserAgent:    e.UserAgent,
			DownloadedAt: e.DownloadedAt,
			Success:      e.Success,
		}
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// HandleToggle handles POST /api/shares/{token}/toggle.
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	rec := h.lookup(w, r)
	if rec == nil {
		return
	}
	active, err := h.mgr.Toggle(r.Context(), rec)
	if err != nil {
		appctx.GetLogger(r.Context()).Error("share toggle failed", "error", err)
		api.WriteInternalError(w, "could not update share")
		return
	}
	api.WriteJSON(w, http.StatusOK, ToggleResponse{IsActive: active})
}

// HandleDelete handles DELETE /api/shares/{token}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	rec := h.lookup(w, r)
	if rec == nil {
		return
	}
	if err := h.mgr.Delete(r.Context(), rec); err != nil && !errors.Is(err, shares.ErrNotFound) {
		appctx.GetLogger(r.Context()).Error("share delete failed", "error", err)
		api.WriteInternalError(w, "could not delete share")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Routes mounts the handler on r, relative to /shares.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Get("/{token}", h.HandleGet)
	r.Post("/{token}/toggle", h.HandleToggle)
	r.Delete("/{token}", h.HandleDelete)
}
