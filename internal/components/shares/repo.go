package shares

import (
	"context"
	"time"
)

// Repo persists share records and their access log. Implementations live in
// platform/store and must be safe for concurrent use.
type Repo interface {
	// Create inserts a new record. Returns ErrTokenConflict when the token
	// is already taken.
	Create(ctx context.Context, rec *ShareRecord) error

	// GetByToken returns ErrNotFound when no record carries the token.
	GetByToken(ctx context.Context, token string) (*ShareRecord, error)

	// ListForOwner returns the owner's records, newest first.
	ListForOwner(ctx context.Context, ownerID string) ([]*ShareRecord, error)

	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes the record and its access log in one transaction.
	Delete(ctx context.Context, id string) error

	// ClaimDownload increments download_count only if the record is still
	// downloadable at now. The check and the increment are one statement;
	// false means another request took the last download or the record
	// stopped being downloadable.
	ClaimDownload(ctx context.Context, id string, now time.Time) (bool, error)

	AppendAccessLog(ctx context.Context, entry *AccessLogEntry) error

	// RecentAccess returns up to limit entries, newest first.
	RecentAccess(ctx context.Context, id string, limit int) ([]*AccessLogEntry, error)

	// Stats aggregates the owner's records as seen at now.
	Stats(ctx context.Context, ownerID string, now time.Time) (Stats, error)
}
