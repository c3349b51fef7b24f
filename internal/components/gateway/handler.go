package gateway

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/api"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
)

const (
	msgUnavailable = "This link has expired or reached its download limit."
	msgIOError     = "The file is temporarily unavailable. Please try again later."
)

var rejectionPage = template.Must(template.New("rejection").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="robots" content="noindex">
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</main>
</body>
</html>
`))

// Handler serves GET /download/{token}.
type Handler struct {
	gw *Gateway
}

func NewHandler(gw *Gateway) *Handler {
	return &Handler{gw: gw}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	client := Client{
		IP:        appctx.ClientIP(r.Context()),
		UserAgent: r.UserAgent(),
	}

	dl, err := h.gw.Open(r.Context(), token, client)
	if err != nil {
		writeRejection(w, r, RejectionReason(err))
		return
	}

	rec := dl.Record
	hdr := w.Header()
	hdr.Set("Content-Type", rec.ContentType)
	hdr.Set("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
	hdr.Set("Content-Disposition", ContentDisposition(rec.OriginalFilename))
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, dl.Body)
	if err == nil && n != rec.SizeBytes {
		err = fmt.Errorf("short transfer: %d of %d bytes", n, rec.SizeBytes)
	}
	dl.Finish(err)
}

func writeRejection(w http.ResponseWriter, r *http.Request, reason Reason) {
	status, apiReason, title, msg := http.StatusGone, api.ReasonLinkUnavailable, "Link unavailable", msgUnavailable
	if reason == ReasonIOError {
		status, apiReason, title, msg = http.StatusServiceUnavailable, api.ReasonStorageUnavailable, "Temporarily unavailable", msgIOError
	}

	w.Header().Set("Cache-Control", "no-store")
	if wantsJSON(r) {
		api.WriteError(w, status, apiReason, msg)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := rejectionPage.Execute(w, struct{ Title, Message string }{title, msg}); err != nil {
		appctx.GetLogger(r.Context()).Warn("render rejection page", "error", err)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// ContentDisposition builds an attachment header carrying name. Names
// outside printable ASCII get an RFC 5987 filename* parameter next to an
// ASCII fallback.
func ContentDisposition(name string) string {
	var fallback strings.Builder
	ascii := true
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			fallback.WriteByte('_')
			ascii = false
		case r < 0x20 || r > 0x7e:
			fallback.WriteByte('_')
			ascii = false
		default:
			fallback.WriteRune(r)
		}
	}

	v := `attachment; filename="` + fallback.String() + `"`
	if !ascii {
		v += "; filename*=UTF-8''" + percentEncode(name)
	}
	return v
}

// percentEncode keeps RFC 5987 attr-chars and escapes every other byte.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
