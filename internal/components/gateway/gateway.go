// Package gateway serves share links to anonymous recipients. Every
// request resolves a token, checks the record is still downloadable, claims
// one download atomically, streams the file and appends an access log entry.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

// Reason classifies a rejected request.
type Reason string

const (
	// ReasonNotFound means no record carries the token. Nothing is logged.
	ReasonNotFound Reason = "not_found"
	// ReasonExpiredOrLimited covers expired, deactivated and used-up links,
	// including a claim lost to a concurrent request.
	ReasonExpiredOrLimited Reason = "expired_or_limited"
	// ReasonIOError means the stored bytes or the database could not be read.
	ReasonIOError Reason = "io_error"
)

// Rejection is the error Open returns for every non-served outcome.
type Rejection struct {
	Reason Reason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("download rejected (%s): %v", r.Reason, r.Err)
	}
	return fmt.Sprintf("download rejected (%s)", r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// RejectionReason extracts the reason from err, or "" when err is not a
// *Rejection.
func RejectionReason(err error) Reason {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// Client identifies the requester for the access log.
type Client struct {
	IP        string
	UserAgent string
}

// Gateway evaluates download requests.
type Gateway struct {
	shares         *shares.Manager
	log            *slog.Logger
	allowSensitive bool
}

// New creates a gateway. allowSensitive puts full tokens in log lines.
func New(mgr *shares.Manager, allowSensitive bool, log *slog.Logger) *Gateway {
	return &Gateway{shares: mgr, log: logutil.NoopIfNil(log), allowSensitive: allowSensitive}
}

// Download is a claimed download. The caller streams Body and must call
// Finish exactly once.
type Download struct {
	Record *shares.ShareRecord
	Body   io.ReadCloser

	gw     *Gateway
	ctx    context.Context
	client Client
	done   bool
}

// Open resolves token and, when the record may be served, claims one
// download. The count is taken after the blob opens and before any byte is
// sent; a transfer that fails later keeps its claim.
func (g *Gateway) Open(ctx context.Context, token string, client Client) (*Download, error) {
	log := g.logger(ctx).With("token", logutil.RedactToken(token, g.allowSensitive))

	rec, err := g.shares.GetByToken(ctx, token)
	if errors.Is(err, shares.ErrNotFound) {
		log.Debug("download rejected", "reason", ReasonNotFound)
		return nil, &Rejection{Reason: ReasonNotFound}
	}
	if err != nil {
		log.Error("share lookup failed", "error", err)
		return nil, &Rejection{Reason: ReasonIOError, Err: err}
	}
	log = log.With("share_id", rec.ID)

	if !rec.Downloadable(g.shares.Now()) {
		g.record(ctx, rec, client, false)
		log.Info("download rejected", "reason", ReasonExpiredOrLimited,
			"is_active", rec.IsActive, "download_count", rec.DownloadCount, "max_downloads", rec.MaxDownloads)
		return nil, &Rejection{Reason: ReasonExpiredOrLimited, Err: shares.ErrExpiredOrLimited}
	}

	body, err := g.shares.Open(ctx, rec)
	if err != nil {
		g.record(ctx, rec, client, false)
		log.Error("blob open failed", "storage_key", rec.StorageKey, "error", err)
		return nil, &Rejection{Reason: ReasonIOError, Err: err}
	}

	claimed, err := g.shares.ClaimDownload(ctx, rec)
	if err != nil || !claimed {
		body.Close()
		g.record(ctx, rec, client, false)
		if err != nil {
			log.Error("download claim failed", "error", err)
			return nil, &Rejection{Reason: ReasonIOError, Err: err}
		}
		log.Info("download rejected", "reason", ReasonExpiredOrLimited, "claim", "lost")
		return nil, &Rejection{Reason: ReasonExpiredOrLimited, Err: shares.ErrExpiredOrLimited}
	}

	return &Download{Record: rec, Body: body, gw: g, ctx: ctx, client: client}, nil
}

// Finish closes Body and logs the attempt; streamErr nil means the bytes
// were delivered. The log entry survives request cancellation.
func (d *Download) Finish(streamErr error) {
	if d.done {
		return
	}
	d.done = true
	d.Body.Close()

	success := streamErr == nil
	d.gw.record(d.ctx, d.Record, d.client, success)

	log := d.gw.logger(d.ctx).With("share_id", d.Record.ID)
	if success {
		log.Info("download served", "size_bytes", d.Record.SizeBytes, "download_count", d.Record.DownloadCount)
	} else {
		log.Warn("download interrupted", "error", streamErr)
	}
}

func (g *Gateway) record(ctx context.Context, rec *shares.ShareRecord, client Client, success bool) {
	if err := g.shares.RecordAccess(context.WithoutCancel(ctx), rec, client.IP, client.UserAgent, success); err != nil {
		g.logger(ctx).Warn("access log append failed", "share_id", rec.ID, "error", err)
	}
}

// logger prefers the request-scoped logger.
func (g *Gateway) logger(ctx context.Context) *slog.Logger {
	if l, ok := appctx.LoggerFromContext(ctx); ok {
		return l
	}
	return g.log
}
