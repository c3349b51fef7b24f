package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
)

// PartyRepo implements identity.PartyRepo on the users table.
type PartyRepo struct {
	db *gorm.DB
}

// NewPartyRepo wraps an opened database.
func NewPartyRepo(db *gorm.DB) *PartyRepo { return &PartyRepo{db: db} }

func (r *PartyRepo) Create(ctx context.Context, user *identity.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if norm := identity.NormalizeEmail(user.Email); norm != "" {
			var n int64
			if err := tx.Model(&identity.User{}).Where("lower(email) = ?", norm).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return identity.ErrEmailExists
			}
		}
		if user.ID == "" {
			user.ID = identity.NewID()
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}
		err := tx.Create(user).Error
		if isDuplicate(err) {
			return identity.ErrUserExists
		}
		return err
	})
}

func (r *PartyRepo) Get(ctx context.Context, id string) (*identity.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PartyRepo) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *PartyRepo) first(ctx context.Context, query string, arg any) (*identity.User, error) {
	var u identity.User
	err := r.db.WithContext(ctx).First(&u, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Update writes the mutable columns only.
func (r *PartyRepo) Update(ctx context.Context, user *identity.User) error {
	res := r.db.WithContext(ctx).Model(&identity.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"password_hash": user.PasswordHash,
			"display_name":  user.DisplayName,
			"role":          user.Role,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (r *PartyRepo) List(ctx context.Context) ([]*identity.User, error) {
	var users []*identity.User
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&users).Error
	return users, err
}

var _ identity.PartyRepo = (*PartyRepo)(nil)
