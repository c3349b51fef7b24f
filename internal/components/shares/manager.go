package shares

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/blob"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

const (
	// maxTokenAttempts bounds regeneration after a unique-token collision.
	maxTokenAttempts = 5

	// DetailAccessEntries is how many log rows the owner detail view shows.
	DetailAccessEntries = 20

	maxUserAgentRunes = 500
)

// Manager ties the record store to blob storage. Handlers and the download
// gateway go through it rather than the Repo.
type Manager struct {
	repo     Repo
	blobs    blob.Store
	maxBytes int64
	log      *slog.Logger

	now      func() time.Time
	newToken func() (string, error)
}

// ManagerOption adjusts a Manager at construction.
type ManagerOption func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithTokenSource replaces GenerateToken.
func WithTokenSource(f func() (string, error)) ManagerOption {
	return func(m *Manager) { m.newToken = f }
}

// NewManager creates a manager. maxBytes <= 0 disables the size check.
func NewManager(repo Repo, blobs blob.Store, maxBytes int64, log *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		repo:     repo,
		blobs:    blobs,
		maxBytes: maxBytes,
		log:      logutil.NoopIfNil(log),
		now:      time.Now,
		newToken: GenerateToken,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now is the manager clock in UTC.
func (m *Manager) Now() time.Time { return m.now().UTC() }

// MaxBytes is the configured upload limit.
func (m *Manager) MaxBytes() int64 { return m.maxBytes }

// Create validates p, stores body under a fresh storage key and persists a
// record with a new token. The blob is removed when the record cannot be
// saved.
func (m *Manager) Create(ctx context.Context, ownerID string, p CreateParams, body io.Reader) (*ShareRecord, error) {
	p.ApplyDefaults()
	if err := p.Validate(m.maxBytes); err != nil {
		return nil, err
	}

	now := m.Now()
	key := StorageKey(now, p.Filename)
	if err := m.blobs.Put(ctx, key, body, p.Size, p.ContentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	rec := &ShareRecord{
		ID:               uuid.Must(uuid.NewV7()).String(),
		OwnerID:          ownerID,
		StorageKey:       key,
		OriginalFilename: DisplayFilename(p.Filename, key),
		Description:      p.Description,
		ContentType:      p.ContentType,
		SizeBytes:        p.Size,
		ExpiryHours:      p.ExpiryHours,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(p.ExpiryHours) * time.Hour),
		IsActive:         true,
		MaxDownloads:     p.MaxDownloads,
	}

	err := m.insert(ctx, rec)
	if err != nil {
		if derr := m.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			m.log.Warn("orphaned upload", "storage_key", key, "error", derr)
		}
		return nil, err
	}

	m.log.Info("share created", "share_id", rec.ID, "owner_id", ownerID,
		"size_bytes", rec.SizeBytes, "expiry_hours", rec.ExpiryHours, "max_downloads", rec.MaxDownloads)
	return rec, nil
}

func (m *Manager) insert(ctx context.Context, rec *ShareRecord) error {
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := m.newToken()
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		rec.Token = token

		err = m.repo.Create(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTokenConflict) {
			return fmt.Errorf("save share: %w", err)
		}
		m.log.Warn("share token collision, regenerating", "attempt", attempt)
	}
	return fmt.Errorf("save share: %w after %d attempts", ErrTokenConflict, maxTokenAttempts)
}

// GetByToken resolves a token with no ownership filter.
func (m *Manager) GetByToken(ctx context.Context, token string) (*ShareRecord, error) {
	if !PlausibleToken(token) {
		return nil, ErrNotFound
	}
	return m.repo.GetByToken(ctx, token)
}

// GetByTokenForOwner returns ErrNotFound both when the token is unknown and
// when the record belongs to someone else.
func (m *Manager) GetByTokenForOwner(ctx context.Context, token, ownerID string) (*ShareRecord, error) {
	rec, err := m.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *Manager) ListForOwner(ctx context.Context, ownerID string) ([]*ShareRecord, error) {
	return m.repo.ListForOwner(ctx, ownerID)
}

func (m *Manager) SetActive(ctx context.Context, rec *ShareRecord, active bool) error {
	if err := m.repo.SetActive(ctx, rec.ID, active); err != nil {
		return err
	}
	rec.IsActive = active
	return nil
}

// Toggle flips is_active and returns the new value.
func (m *Manager) Toggle(ctx context.Context, rec *ShareRecord) (bool, error) {
	active := !rec.IsActive
	if err := m.SetActive(ctx, rec, active); err != nil {
		return rec.IsActive, err
	}
	m.log.Info("share toggled", "share_id", rec.ID, "is_active", active)
	return active, nil
}

// Delete removes the record and its log, then the blob. Blob errors are
// logged only; the record is already gone.
func (m *Manager) Delete(ctx context.Context, rec *ShareRecord) error {
	if err := m.repo.Delete(ctx, rec.ID); err != nil {
		return err
	}
	if err := m.blobs.Delete(context.WithoutCancel(ctx), rec.StorageKey); err != nil {
		m.log.Warn("blob delete failed", "share_id", rec.ID, "storage_key", rec.StorageKey, "error", err)
	}
	m.log.Info("share deleted", "share_id", rec.ID)
	return nil
}

// Open returns the stored bytes for rec.
func (m *Manager) Open(ctx context.Context, rec *ShareRecord) (io.ReadCloser, error) {
	return m.blobs.Open(ctx, rec.StorageKey)
}

// ClaimDownload atomically takes one download from rec's allowance.
func (m *Manager) ClaimDownload(ctx context.Context, rec *ShareRecord) (bool, error) {
	ok, err := m.repo.ClaimDownload(ctx, rec.ID, m.Now())
	if err != nil {
		return false, err
	}
	if ok {
		rec.DownloadCount++
	}
	return ok, nil
}

// RecordAccess appends one access log entry for rec.
func (m *Manager) RecordAccess(ctx context.Context, rec *ShareRecord, ip, userAgent string, success bool) error {
	if utf8.RuneCountInString(userAgent) > maxUserAgentRunes {
		userAgent = string([]rune(userAgent)[:maxUserAgentRunes])
	}
	return m.repo.AppendAccessLog(ctx, &AccessLogEntry{
		ShareRecordID: rec.ID,
		IPAddress:     ip,
		UserAgent:     userAgent,
		DownloadedAt:  m.Now(),
		Success:       success,
	})
}

func (m *Manager) RecentAccess(ctx context.Context, rec *ShareRecord, limit int) ([]*AccessLogEntry, error) {
	return m.repo.RecentAccess(ctx, rec.ID, limit)
}

func (m *Manager) Stats(ctx context.Context, ownerID string) (Stats, error) {
	return m.repo.Stats(ctx, ownerID, m.Now())
}
