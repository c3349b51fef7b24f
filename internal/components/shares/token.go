package shares

import (
	"crypto/rand"
	"encoding/base64"
)

// TokenBytes is the entropy of a share token. Encoded it is 43 characters.
const TokenBytes = 32

// GenerateToken returns a URL-safe token from TokenBytes random bytes.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// PlausibleToken rejects values that cannot be a token before touching the
// store.
func PlausibleToken(s string) bool {
	if len(s) != base64.RawURLEncoding.EncodedLen(TokenBytes) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
