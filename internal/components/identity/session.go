package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/cache"
)

// Session is a login session, identified by an opaque bearer token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// SessionRepo stores sessions.
type SessionRepo interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error)
	// Get returns ErrSessionNotFound or ErrSessionExpired.
	Get(ctx context.Context, token string) (*Session, error)
	// Delete is a no-op for unknown tokens.
	Delete(ctx context.Context, token string) error
}

// GenerateToken returns 32 random bytes, base64url without padding.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func newSession(userID string, now time.Time, ttl time.Duration) (*Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// MemorySessionRepo keeps sessions in a map.
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (r *MemorySessionRepo) Create(_ context.Context, userID string, ttl time.Duration) (*Session, error) {
	s, err := newSession(userID, r.now(), ttl)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
	cp := *s
	return &cp, nil
}

func (r *MemorySessionRepo) Get(_ context.Context, token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.IsExpiredAt(r.now()) {
		return nil, ErrSessionExpired
	}
	cp := *s
	return &cp, nil
}

func (r *MemorySessionRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

// DeleteExpired drops expired sessions and returns how many were removed.
func (r *MemorySessionRepo) DeleteExpired(_ context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for token, s := range r.sessions {
		if s.IsExpiredAt(now) {
			delete(r.sessions, token)
			n++
		}
	}
	return n
}

const sessionKeyPrefix = "session:"

// CacheSessionRepo stores sessions as JSON in the shared cache, so sessions
// survive restarts and are visible to every replica when the cache is Redis.
// Expiry is delegated to the cache TTL.
type CacheSessionRepo struct {
	cache cache.Cache
	now   func() time.Time
}

func NewCacheSessionRepo(c cache.Cache) *CacheSessionRepo {
	return &CacheSessionRepo{cache: c, now: time.Now}
}

func (r *CacheSessionRepo) Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		ttl = cache.TTLSession
	}
	s, err := newSession(userID, r.now(), ttl)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, sessionKeyPrefix+s.Token, data, ttl); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

func (r *CacheSessionRepo) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	data, err := r.cache.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if errors.Is(err, cache.ErrExpired) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.IsExpiredAt(r.now()) {
		return nil, ErrSessionExpired
	}
	return &s, nil
}

func (r *CacheSessionRepo) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := r.cache.Delete(ctx, sessionKeyPrefix+token)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	return err
}
