// Package shares owns share records: the tokenized, time-limited and
// download-limited links owners create for uploaded files, and the access
// log written for every attempt to use one.
package shares

import (
	"slices"
	"time"
)

// DefaultExpiryHours applies when an upload does not choose an expiry.
const DefaultExpiryHours = 24

// AllowedExpiryHours are the only accepted link lifetimes.
var AllowedExpiryHours = []int{1, 24, 72, 168, 720}

// ValidExpiryHours reports whether h is one of AllowedExpiryHours.
func ValidExpiryHours(h int) bool {
	return slices.Contains(AllowedExpiryHours, h)
}

// ShareRecord is one uploaded file and the link that serves it.
type ShareRecord struct {
	ID               string    `json:"id" gorm:"primaryKey;size:36"`
	Token            string    `json:"token" gorm:"uniqueIndex;size:64;not null"`
	OwnerID          string    `json:"owner_id" gorm:"index;size:36;not null"`
	StorageKey       string    `json:"storage_key" gorm:"size:512;not null"`
	OriginalFilename string    `json:"original_filename" gorm:"size:255;not null"`
	Description      string    `json:"description"`
	ContentType      string    `json:"content_type" gorm:"size:255"`
	SizeBytes        int64     `json:"size_bytes"`
	ExpiryHours      int       `json:"expiry_hours" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at" gorm:"not null"`
	ExpiresAt        time.Time `json:"expires_at" gorm:"index;not null"`
	IsActive         bool      `json:"is_active" gorm:"not null"`
	MaxDownloads     int       `json:"max_downloads" gorm:"not null"`
	DownloadCount    int       `json:"download_count" gorm:"not null"`
}

func (ShareRecord) TableName() string { return "share_records" }

// Expired is true once the link's lifetime has passed or the owner
// deactivated it.
func (r *ShareRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt) || !r.IsActive
}

// LimitReached is true when a download limit is set and used up.
func (r *ShareRecord) LimitReached() bool {
	return r.MaxDownloads > 0 && r.DownloadCount >= r.MaxDownloads
}

// Downloadable reports whether the gateway may serve the file at now.
func (r *ShareRecord) Downloadable(now time.Time) bool {
	return !r.Expired(now) && !r.LimitReached()
}

// RemainingDownloads returns -1 for unlimited links.
func (r *ShareRecord) RemainingDownloads() int {
	if r.MaxDownloads == 0 {
		return -1
	}
	return max(r.MaxDownloads-r.DownloadCount, 0)
}

// AccessLogEntry records one attempt to use a link that exists.
type AccessLogEntry struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ShareRecordID string    `json:"share_record_id" gorm:"size:36;not null;index:idx_access_log_share_time,priority:1"`
	IPAddress     string    `json:"ip_address" gorm:"size:64"`
	UserAgent     string    `json:"user_agent"`
	DownloadedAt  time.Time `json:"downloaded_at" gorm:"not null;index:idx_access_log_share_time,priority:2,sort:desc"`
	Success       bool      `json:"success" gorm:"not null"`

	ShareRecord *ShareRecord `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

func (AccessLogEntry) TableName() string { return "access_log_entries" }

// Stats are the owner dashboard counters.
type Stats struct {
	TotalFiles     int64 `json:"total_files"`
	ActiveFiles    int64 `json:"active_files"`
	ExpiredFiles   int64 `json:"expired_files"`
	TotalDownloads int64 `json:"total_downloads"`
}
