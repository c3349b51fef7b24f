package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
)

// ShareRepo implements shares.Repo.
type ShareRepo struct {
	db *gorm.DB
}

// NewShareRepo wraps an opened database.
func NewShareRepo(db *gorm.DB) *ShareRepo { return &ShareRepo{db: db} }

func (r *ShareRepo) Create(ctx context.Context, rec *shares.ShareRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if isDuplicate(err) {
		return shares.ErrTokenConflict
	}
	return err
}

func (r *ShareRepo) GetByToken(ctx context.Context, token string) (*shares.ShareRecord, error) {
	var rec shares.ShareRecord
	err := r.db.WithContext(ctx).First(&rec, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shares.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *ShareRepo) ListForOwner(ctx context.Context, ownerID string) ([]*shares.ShareRecord, error) {
	var recs []*shares.ShareRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&recs).Error
	return recs, err
}

func (r *ShareRepo) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&shares.ShareRecord{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shares.ErrNotFound
	}
	return nil
}

func (r *ShareRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("share_record_id = ?", id).Delete(&shares.AccessLogEntry{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&shares.ShareRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shares.ErrNotFound
		}
		return nil
	})
}

// ClaimDownload re-evaluates Downloadable inside the UPDATE so two
// concurrent claims on the last download cannot both win.
func (r *ShareRepo) ClaimDownload(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&shares.ShareRecord{}).
		Where("id = ? AND is_active = ? AND expires_at >= ?", id, true, now.UTC()).
		Where("(max_downloads = 0 OR download_count < max_downloads)").
		UpdateColumn("download_count", gorm.Expr("download_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ShareRepo) AppendAccessLog(ctx context.Context, entry *shares.AccessLogEntry) error {
	entry.DownloadedAt = entry.DownloadedAt.UTC()
	err := r.db.WithContext(ctx).Omit("ShareRecord").Create(entry).Error
	if isForeignKey(err) {
		return shares.ErrNotFound
	}
	return err
}

func (r *ShareRepo) RecentAccess(ctx context.Context, id string, limit int) ([]*shares.AccessLogEntry, error) {
	var entries []*shares.AccessLogEntry
	q := r.db.WithContext(ctx).
		Where("share_record_id = ?", id).
		Order("downloaded_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

func (r *ShareRepo) Stats(ctx context.Context, ownerID string, now time.Time) (shares.Stats, error) {
	var row struct {
		Total     int64
		Active    int64
		Downloads int64
	}
	err := r.db.WithContext(ctx).Model(&shares.ShareRecord{}).
		Select("COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN is_active AND expires_at >= ? THEN 1 ELSE 0 END), 0) AS active, "+
			"COALESCE(SUM(download_count), 0) AS downloads", now.UTC()).
		Where("owner_id = ?", ownerID).
		Scan(&row).Error
	if err != nil {
		return shares.Stats{}, err
	}
	return shares.Stats{
		TotalFiles:     row.Total,
		ActiveFiles:    row.Active,
		ExpiredFiles:   row.Total - row.Active,
		TotalDownloads: row.Downloads,
	}, nil
}

var _ shares.Repo = (*ShareRepo)(nil)

// Constraint errors match either the translated sentinel or the raw
// sqlite message.
func isDuplicate(err error) bool {
	return err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed"))
}

func isForeignKey(err error) bool {
	return err != nil && (errors.Is(err, gorm.ErrForeignKeyViolated) || strings.Contains(err.Error(), "FOREIGN KEY constraint failed"))
}
