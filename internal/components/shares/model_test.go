package shares_test

import (
	"testing"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
)

func TestDownloadable(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		active    bool
		max       int
		count     int
		expired   bool
		servable  bool
	}{
		{"fresh unlimited", now.Add(time.Hour), true, 0, 0, false, true},
		{"unlimited many downloads", now.Add(time.Hour), true, 0, 1000, false, true},
		{"under limit", now.Add(time.Hour), true, 3, 2, false, true},
		{"at limit", now.Add(time.Hour), true, 3, 3, false, false},
		{"over limit", now.Add(time.Hour), true, 1, 2, false, false},
		{"deactivated", now.Add(time.Hour), false, 0, 0, true, false},
		{"past expiry", now.Add(-time.Second), true, 0, 0, true, false},
		{"exactly at expiry", now, true, 0, 0, false, true},
		{"expired and inactive", now.Add(-time.Hour), false, 5, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &shares.ShareRecord{ExpiresAt: tt.expiresAt, IsActive: tt.active, MaxDownloads: tt.max, DownloadCount: tt.count}
			if got := rec.Expired(now); got != tt.expired {
				t.Errorf("Expired() = %v, want %v", got, tt.expired)
			}
			if got := rec.Downloadable(now); got != tt.servable {
				t.Errorf("Downloadable() = %v, want %v", got, tt.servable)
			}
		})
	}
}

func TestRemainingDownloads(t *testing.T) {
	tests := []struct {
		max, count, want int
	}{
		{0, 10, -1},
		{5, 2, 3},
		{5, 5, 0},
		{1, 3, 0},
	}
	for _, tt := range tests {
		rec := &shares.ShareRecord{MaxDownloads: tt.max, DownloadCount: tt.count}
		if got := rec.RemainingDownloads(); got != tt.want {
			t.Errorf("RemainingDownloads(max=%d, count=%d) = %d, want %d", tt.max, tt.count, got, tt.want)
		}
	}
}

func TestValidExpiryHours(t *testing.T) {
	for _, h := range []int{1, 24, 72, 168, 720} {
		if !shares.ValidExpiryHours(h) {
			t.Errorf("%d should be allowed", h)
		}
	}
	for _, h := range []int{0, -1, 2, 48, 721} {
		if shares.ValidExpiryHours(h) {
			t.Errorf("%d should be rejected", h)
		}
	}
}
