package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

// SeededUser is a user created at start-up when missing.
type SeededUser struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
	Role        string
}

// Bootstrap creates the admin and seeded users idempotently.
type Bootstrap struct {
	repo PartyRepo
	auth *UserAuth
	log  *slog.Logger
}

func NewBootstrap(repo PartyRepo, auth *UserAuth, log *slog.Logger) *Bootstrap {
	return &Bootstrap{repo: repo, auth: auth, log: logutil.NoopIfNil(log)}
}

// Run ensures every seeded user exists and returns how many were created.
// Existing users are left untouched.
func (b *Bootstrap) Run(ctx context.Context, seeded []SeededUser) (int, error) {
	created := 0
	for _, s := range seeded {
		_, err := b.repo.GetByUsername(ctx, s.Username)
		if err == nil {
			b.log.Debug("user already exists", "username", s.Username)
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return created, err
		}
		if err := b.create(ctx, s); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// EnsureAdmin creates the admin user if no admin exists. An empty password
// is replaced by a random one that is logged once. When an admin already
// exists and rotate is set, its password is replaced.
func (b *Bootstrap) EnsureAdmin(ctx context.Context, username, password string, rotate bool) error {
	if username == "" {
		username = "admin"
	}

	users, err := b.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if !u.IsAdmin() {
			continue
		}
		if rotate && password != "" {
			hash, err := b.auth.HashPassword(password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
			if err := b.repo.Update(ctx, u); err != nil {
				return err
			}
			b.log.Info("admin password rotated", "username", u.Username)
		}
		return nil
	}

	generated := password == ""
	if generated {
		password = randomPassword()
	}
	if err := b.create(ctx, SeededUser{
		Username:    username,
		Password:    password,
		DisplayName: "Administrator",
		Role:        RoleAdmin,
	}); err != nil {
		return err
	}

	if generated {
		b.log.Warn("admin created with generated password", "username", username, "password", password)
	}
	return nil
}

func (b *Bootstrap) create(ctx context.Context, s SeededUser) error {
	hash, err := b.auth.HashPassword(s.Password)
	if err != nil {
		return err
	}
	role := s.Role
	if role == "" {
		role = RoleUser
	}
	display := s.DisplayName
	if display == "" {
		display = s.Username
	}

	user := &User{
		Username:     s.Username,
		Email:        s.Email,
		DisplayName:  display,
		PasswordHash: hash,
		Role:         role,
	}
	if err := b.repo.Create(ctx, user); err != nil {
		return err
	}
	b.log.Info("created user", "username", s.Username, "role", role, "user_id", user.ID)
	return nil
}

func randomPassword() string {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "changeme-" + NewID()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
