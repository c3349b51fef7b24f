// Package storetest provides shared helpers and a conformance suite for
// store drivers.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/store/sqlite"
)

// Epoch is a fixed UTC instant tests build records around.
var Epoch = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// Open builds and initializes a driver in a temp directory. It is closed
// when the test ends.
func Open(t testing.TB, cfg *store.Config) store.Driver {
	t.Helper()
	if cfg == nil {
		cfg = &store.Config{}
	}
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	d, err := store.New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Init(context.Background()))
	t.Cleanup(func() { d.Close() })
	return d
}

// OpenSQLite is Open with the default driver.
func OpenSQLite(t testing.TB) store.Driver {
	t.Helper()
	return Open(t, &store.Config{Driver: "sqlite"})
}

// NewRecord returns an active, unlimited record created at Epoch.
func NewRecord(ownerID string) *shares.ShareRecord {
	token, err := shares.GenerateToken()
	if err != nil {
		panic(err)
	}
	id := uuid.Must(uuid.NewV7()).String()
	return &shares.ShareRecord{
		ID:               id,
		Token:            token,
		OwnerID:          ownerID,
		StorageKey:       "uploads/2026/03/14/" + id + "-report.pdf",
		OriginalFilename: "report.pdf",
		ContentType:      "application/pdf",
		SizeBytes:        1024,
		ExpiryHours:      24,
		CreatedAt:        Epoch,
		ExpiresAt:        Epoch.Add(24 * time.Hour),
		IsActive:         true,
	}
}

// RunDriverTests runs the standard suite against the driver cfg selects.
func RunDriverTests(t *testing.T, cfg store.Config) {
	open := func(t *testing.T) store.Driver {
		c := cfg
		c.DataDir = t.TempDir()
		return Open(t, &c)
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()

		rec := NewRecord("alice")
		rec.Description = "quarterly numbers"
		rec.MaxDownloads = 3
		require.NoError(t, repo.Create(ctx, rec))

		got, err := repo.GetByToken(ctx, rec.Token)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "alice", got.OwnerID)
		assert.Equal(t, "quarterly numbers", got.Description)
		assert.Equal(t, 3, got.MaxDownloads)
		assert.True(t, got.IsActive)
		assert.True(t, got.ExpiresAt.Equal(rec.ExpiresAt), "expires_at %v != %v", got.ExpiresAt, rec.ExpiresAt)
		assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))

		_, err = repo.GetByToken(ctx, "missing")
		assert.ErrorIs(t, err, shares.ErrNotFound)
	})

	t.Run("DuplicateToken", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()

		first := NewRecord("alice")
		require.NoError(t, repo.Create(ctx, first))

		second := NewRecord("bob")
		second.Token = first.Token
		assert.ErrorIs(t, repo.Create(ctx, second), shares.ErrTokenConflict)
	})

	t.Run("InactiveSurvivesRoundTrip", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()

		rec := NewRecord("alice")
		rec.IsActive = false
		require.NoError(t, repo.Create(ctx, rec))

		got, err := repo.GetByToken(ctx, rec.Token)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("ListForOwner", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()

		older := NewRecord("alice")
		newer := NewRecord("alice")
		newer.CreatedAt = Epoch.Add(time.Minute)
		other := NewRecord("bob")
		for _, r := range []*shares.ShareRecord{older, newer, other} {
			require.NoError(t, repo.Create(ctx, r))
		}

		list, err := repo.ListForOwner(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)

		list, err = repo.ListForOwner(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("SetActive", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()

		rec := NewRecord("alice")
		require.NoError(t, repo.Create(ctx, rec))

		require.NoError(t, repo.SetActive(ctx, rec.ID, false))
		got, _ := repo.GetByToken(ctx, rec.Token)
		assert.False(t, got.IsActive)

		require.NoError(t, repo.SetActive(ctx, rec.ID, true))
		got, _ = repo.GetByToken(ctx, rec.Token)
		assert.True(t, got.IsActive)

		assert.ErrorIs(t, repo.SetActive(ctx, "nope", true), shares.ErrNotFound)
	})

	t.Run("ClaimDownload", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()
		now := Epoch.Add(time.Hour)

		limited := NewRecord("alice")
		limited.MaxDownloads = 2
		require.NoError(t, repo.Create(ctx, limited))

		for i, want := range []bool{true, true, false} {
			ok, err := repo.ClaimDownload(ctx, limited.ID, now)
			require.NoError(t, err)
			assert.Equal(t, want, ok, "claim %d", i)
		}
		got, _ := repo.GetByToken(ctx, limited.Token)
		assert.Equal(t, 2, got.DownloadCount)

		inactive := NewRecord("alice")
		inactive.IsActive = false
		require.NoError(t, repo.Create(ctx, inactive))
		ok, err := repo.ClaimDownload(ctx, inactive.ID, now)
		require.NoError(t, err)
		assert.False(t, ok, "inactive record claimed")

		unlimited := NewRecord("alice")
		require.NoError(t, repo.Create(ctx, unlimited))
		for range 5 {
			ok, err := repo.ClaimDownload(ctx, unlimited.ID, now)
			require.NoError(t, err)
			assert.True(t, ok)
		}

		ok, err = repo.ClaimDownload(ctx, unlimited.ID, unlimited.ExpiresAt)
		require.NoError(t, err)
		assert.True(t, ok, "claim at exactly expires_at")

		ok, err = repo.ClaimDownload(ctx, unlimited.ID, unlimited.ExpiresAt.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, ok, "expired record claimed")
	})

	t.Run("ConcurrentClaims", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()
		const limit = 8

		rec := NewRecord("alice")
		rec.MaxDownloads = limit
		require.NoError(t, repo.Create(ctx, rec))

		results := make([]bool, 2*limit)
		var g errgroup.Group
		for i := range results {
			g.Go(func() error {
				ok, err := repo.ClaimDownload(ctx, rec.ID, Epoch.Add(time.Minute))
				results[i] = ok
				return err
			})
		}
		require.NoError(t, g.Wait())

		won := 0
		for _, ok := range results {
			if ok {
				won++
			}
		}
		assert.Equal(t, limit, won)

		got, _ := repo.GetByToken(ctx, rec.Token)
		assert.Equal(t, limit, got.DownloadCount)
	})

	t.Run("AccessLog", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()

		rec := NewRecord("alice")
		require.NoError(t, repo.Create(ctx, rec))

		for i := range 25 {
			require.NoError(t, repo.AppendAccessLog(ctx, &shares.AccessLogEntry{
				ShareRecordID: rec.ID,
				IPAddress:     "198.51.100.7",
				UserAgent:     "curl/8.5",
				DownloadedAt:  Epoch.Add(time.Duration(i) * time.Second),
				Success:       i%2 == 0,
			}))
		}

		recent, err := repo.RecentAccess(ctx, rec.ID, 20)
		require.NoError(t, err)
		require.Len(t, recent, 20)
		assert.True(t, recent[0].DownloadedAt.Equal(Epoch.Add(24*time.Second)))
		assert.True(t, recent[19].DownloadedAt.Equal(Epoch.Add(5*time.Second)))
		assert.True(t, recent[0].Success)
		assert.Equal(t, "curl/8.5", recent[0].UserAgent)

		err = repo.AppendAccessLog(ctx, &shares.AccessLogEntry{ShareRecordID: "gone", DownloadedAt: Epoch})
		assert.ErrorIs(t, err, shares.ErrNotFound)
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()

		rec := NewRecord("alice")
		require.NoError(t, repo.Create(ctx, rec))
		require.NoError(t, repo.AppendAccessLog(ctx, &shares.AccessLogEntry{ShareRecordID: rec.ID, DownloadedAt: Epoch, Success: true}))

		require.NoError(t, repo.Delete(ctx, rec.ID))

		_, err := repo.GetByToken(ctx, rec.Token)
		assert.ErrorIs(t, err, shares.ErrNotFound)
		logs, err := repo.RecentAccess(ctx, rec.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, logs)

		assert.ErrorIs(t, repo.Delete(ctx, rec.ID), shares.ErrNotFound)
	})

	t.Run("Stats", func(t *testing.T) {
		repo := open(t).Shares()
		ctx := context.Background()
		now := Epoch.Add(2 * time.Hour)

		active := NewRecord("alice")
		active.DownloadCount = 4
		inactive := NewRecord("alice")
		inactive.IsActive = false
		inactive.DownloadCount = 1
		expired := NewRecord("alice")
		expired.ExpiryHours = 1
		expired.ExpiresAt = Epoch.Add(time.Hour)
		foreign := NewRecord("bob")
		foreign.DownloadCount = 100
		for _, r := range []*shares.ShareRecord{active, inactive, expired, foreign} {
			require.NoError(t, repo.Create(ctx, r))
		}

		st, err := repo.Stats(ctx, "alice", now)
		require.NoError(t, err)
		assert.Equal(t, shares.Stats{TotalFiles: 3, ActiveFiles: 1, ExpiredFiles: 2, TotalDownloads: 5}, st)

		st, err = repo.Stats(ctx, "nobody", now)
		require.NoError(t, err)
		assert.Equal(t, shares.Stats{}, st)
	})

	t.Run("Parties", func(t *testing.T) {
		repo := open(t).Parties()
		ctx := context.Background()

		alice := &identity.User{Username: "alice", Email: "Alice@Example.com", PasswordHash: "h1", Role: identity.RoleUser}
		require.NoError(t, repo.Create(ctx, alice))
		assert.NotEmpty(t, alice.ID)
		assert.False(t, alice.CreatedAt.IsZero())

		err := repo.Create(ctx, &identity.User{Username: "alice", PasswordHash: "h", Role: identity.RoleUser})
		assert.ErrorIs(t, err, identity.ErrUserExists)

		err = repo.Create(ctx, &identity.User{Username: "alice2", Email: "alice@example.COM ", PasswordHash: "h", Role: identity.RoleUser})
		assert.ErrorIs(t, err, identity.ErrEmailExists)

		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		got.PasswordHash = "h2"
		got.Role = identity.RoleAdmin
		got.Username = "renamed"
		require.NoError(t, repo.Update(ctx, got))

		got, err = repo.Get(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "h2", got.PasswordHash)
		assert.Equal(t, "alice", got.Username)
		assert.True(t, got.IsAdmin())

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, identity.ErrUserNotFound)
		assert.ErrorIs(t, repo.Update(ctx, &identity.User{ID: "missing"}), identity.ErrUserNotFound)

		require.NoError(t, repo.Create(ctx, &identity.User{Username: "bob", PasswordHash: "h", Role: identity.RoleUser}))
		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "alice", list[0].Username)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, open(t).Ping(context.Background()))
	})
}
