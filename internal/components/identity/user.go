// Package identity provides user accounts, password authentication and
// login sessions for share owners.
package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrEmailExists        = errors.New("email already in use")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a share owner.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:150;not null"`
	Email        string    `json:"email,omitempty" gorm:"index;size:254"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         string    `json:"role" gorm:"size:16;not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PartyRepo stores users.
type PartyRepo interface {
	// Create assigns ID and CreatedAt when empty. Returns ErrUserExists or
	// ErrEmailExists on conflicts.
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Update replaces the stored user. Only the password hash, display name
	// and role are expected to change.
	Update(ctx context.Context, user *User) error
	List(ctx context.Context) ([]*User, error)
}

// NewID returns a time-ordered UUIDv7 string.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NormalizeEmail lowercases and trims an email for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryPartyRepo keeps users in memory. Used by tests and the dev preset
// when no persistent store is wired.
type MemoryPartyRepo struct {
	mu         sync.RWMutex
	users      map[string]*User
	byUsername map[string]string
	byEmail    map[string]string
}

func NewMemoryPartyRepo() *MemoryPartyRepo {
	return &MemoryPartyRepo{
		users:      make(map[string]*User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (r *MemoryPartyRepo) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return ErrUserExists
	}
	norm := NormalizeEmail(user.Email)
	if norm != "" {
		if _, exists := r.byEmail[norm]; exists {
			return ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	u := *user
	r.users[u.ID] = &u
	r.byUsername[u.Username] = u.ID
	if norm != "" {
		r.byEmail[norm] = u.ID
	}
	return nil
}

func (r *MemoryPartyRepo) Get(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (r *MemoryPartyRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	id, ok := r.byUsername[username]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.Get(ctx, id)
}

func (r *MemoryPartyRepo) Update(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	u := *user
	u.Username = existing.Username
	u.Email = existing.Email
	u.CreatedAt = existing.CreatedAt
	r.users[u.ID] = &u
	return nil
}

func (r *MemoryPartyRepo) List(_ context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, 0, len(r.users))
	for _, user := range r.users {
		u := *user
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
