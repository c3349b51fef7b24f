// Package mirror implements a SQLite + JSON mirror persistence driver.
// SQLite is the source of truth; JSON is a one-way export for operators.
// The program never reads the JSON back.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store/sqlite"
)

const (
	dirName    = "mirror"
	sharesFile = "share_records.json"
	usersFile  = "users.json"
)

func init() {
	store.Register("mirror", func(cfg *store.Config) (store.Driver, error) {
		return New(cfg)
	})
}

// Driver wraps the sqlite driver and rewrites the export after each write.
type Driver struct {
	*sqlite.Driver

	dir            string
	includeSecrets bool
	log            *slog.Logger
	mu             sync.Mutex // serializes exports
}

func New(cfg *store.Config) (*Driver, error) {
	inner, err := sqlite.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	return &Driver{
		Driver:         inner,
		dir:            filepath.Join(cfg.DataDir, dirName),
		includeSecrets: cfg.Mirror.IncludeSecrets,
		log:            logutil.NoopIfNil(cfg.Log),
	}, nil
}

func (d *Driver) Name() string { return "mirror" }

// Init opens the database and writes the initial export.
func (d *Driver) Init(ctx context.Context) error {
	if err := d.Driver.Init(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	if err := d.exportShares(ctx); err != nil {
		return fmt.Errorf("export mirror: %w", err)
	}
	if err := d.exportUsers(ctx); err != nil {
		return fmt.Errorf("export mirror: %w", err)
	}
	return nil
}

func (d *Driver) Shares() shares.Repo {
	return &shareRepo{Repo: d.Driver.Shares(), d: d}
}

func (d *Driver) Parties() identity.PartyRepo {
	return &partyRepo{PartyRepo: d.Driver.Parties(), d: d}
}

// mirroredShare is the exported shape of a record.
type mirroredShare struct {
	ID               string    `json:"id"`
	Token            string    `json:"token,omitempty"`
	OwnerID          string    `json:"owner_id"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	IsActive         bool      `json:"is_active"`
	MaxDownloads     int       `json:"max_downloads"`
	DownloadCount    int       `json:"download_count"`
}

func (d *Driver) exportShares(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var recs []*shares.ShareRecord
	if err := d.DB().WithContext(ctx).Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		return err
	}
	out := make([]mirroredShare, len(recs))
	for i, r := range recs {
		out[i] = mirroredShare{
			ID:               r.ID,
			OwnerID:          r.OwnerID,
			OriginalFilename: r.OriginalFilename,
			SizeBytes:        r.SizeBytes,
			CreatedAt:        r.CreatedAt,
			ExpiresAt:        r.ExpiresAt,
			IsActive:         r.IsActive,
			MaxDownloads:     r.MaxDownloads,
			DownloadCount:    r.DownloadCount,
		}
		if d.includeSecrets {
			out[i].Token = r.Token
		}
	}
	return d.writeJSON(sharesFile, out)
}

// exportUsers relies on User's json tags to leave out password hashes.
func (d *Driver) exportUsers(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var users []*identity.User
	if err := d.DB().WithContext(ctx).Order("created_at ASC, id ASC").Find(&users).Error; err != nil {
		return err
	}
	return d.writeJSON(usersFile, users)
}

// afterWrite refreshes the export. The write already committed, so a failed
// export is logged and not returned.
func (d *Driver) afterWrite(ctx context.Context, export func(context.Context) error) {
	if err := export(context.WithoutCancel(ctx)); err != nil {
		d.log.Warn("mirror export failed", "error", err)
	}
}

// writeJSON atomically writes data to a JSON file in the mirror directory.
func (d *Driver) writeJSON(filename string, data any) error {
	path := filepath.Join(d.dir, filename)
	tempPath := path + ".tmp"

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filename, err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(jsonData); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// shareRepo exports after every write that changes a record. Access log
// appends are not mirrored.
type shareRepo struct {
	shares.Repo
	d *Driver
}

func (r *shareRepo) Create(ctx context.Context, rec *shares.ShareRecord) error {
	if err := r.Repo.Create(ctx, rec); err != nil {
		return err
	}
	r.d.afterWrite(ctx, r.d.exportShares)
	return nil
}

func (r *shareRepo) SetActive(ctx context.Context, id string, active bool) error {
	if err := r.Repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	r.d.afterWrite(ctx, r.d.exportShares)
	return nil
}

func (r *shareRepo) Delete(ctx context.Context, id string) error {
	if err := r.Repo.Delete(ctx, id); err != nil {
		return err
	}
	r.d.afterWrite(ctx, r.d.exportShares)
	return nil
}

func (r *shareRepo) ClaimDownload(ctx context.Context, id string, now time.Time) (bool, error) {
	ok, err := r.Repo.ClaimDownload(ctx, id, now)
	if ok {
		r.d.afterWrite(ctx, r.d.exportShares)
	}
	return ok, err
}

type partyRepo struct {
	identity.PartyRepo
	d *Driver
}

func (r *partyRepo) Create(ctx context.Context, user *identity.User) error {
	if err := r.PartyRepo.Create(ctx, user); err != nil {
		return err
	}
	r.d.afterWrite(ctx, r.d.exportUsers)
	return nil
}

func (r *partyRepo) Update(ctx context.Context, user *identity.User) error {
	if err := r.PartyRepo.Update(ctx, user); err != nil {
		return err
	}
	r.d.afterWrite(ctx, r.d.exportUsers)
	return nil
}

var _ store.Driver = (*Driver)(nil)
