package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters.
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// UserAuth hashes and verifies passwords with Argon2id.
type UserAuth struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32

	// dummyHash is verified against when the username is unknown so lookups
	// of missing users cost the same as wrong passwords.
	dummyHash string
}

func NewUserAuth() *UserAuth {
	return newUserAuth(argon2Time, argon2Memory, argon2Threads)
}

// NewUserAuthFast uses cheap parameters. Tests only.
func NewUserAuthFast() *UserAuth {
	return newUserAuth(1, 8*1024, 1)
}

func newUserAuth(t, m uint32, p uint8) *UserAuth {
	a := &UserAuth{time: t, memory: m, threads: p, keyLen: argon2KeyLen}
	a.dummyHash, _ = a.HashPassword("fileshare-dummy-password")
	return a
}

// HashPassword returns a PHC string: $argon2id$v=19$m=65536,t=3,p=4$salt$hash
func (a *UserAuth) HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, a.time, a.memory, a.threads, a.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.memory, a.time, a.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword returns ErrInvalidPassword on mismatch or a malformed hash.
// The parameters encoded in the hash are used, not the receiver's.
func (a *UserAuth) VerifyPassword(encodedHash, password string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return ErrInvalidPassword
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return ErrInvalidPassword
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return ErrInvalidPassword
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrInvalidPassword
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return ErrInvalidPassword
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(expected)))
	if subtle.ConstantTimeCompare(expected, computed) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// Authenticate returns the user for valid credentials and
// ErrInvalidCredentials for an unknown user or a wrong password.
func (a *UserAuth) Authenticate(ctx context.Context, repo PartyRepo, username, password string) (*User, error) {
	user, err := repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		_ = a.VerifyPassword(a.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := a.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
