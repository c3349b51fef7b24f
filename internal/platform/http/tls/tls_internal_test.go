package tls

import (
	cryptotls "crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
)

func issuedPair(t *testing.T, hostname string, at time.Time) cryptotls.Certificate {
	t.Helper()
	certPEM, keyPEM, _, err := issueSelfSigned(hostname, at)
	require.NoError(t, err)
	cert, err := cryptotls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	return cert
}

func TestReusable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewTLSManager(&config.TLSConfig{Mode: "selfsigned"}, nil)
	m.now = func() time.Time { return now }

	fresh := issuedPair(t, "files.example.com", now)
	assert.Empty(t, m.reusable(fresh, "files.example.com"))
	assert.Empty(t, m.reusable(fresh, "localhost"))
	assert.Empty(t, m.reusable(fresh, ""))
	assert.Equal(t, "hostname changed", m.reusable(fresh, "other.example.com"))

	old := issuedPair(t, "files.example.com", now.Add(-selfSignedValidity+time.Hour))
	assert.Equal(t, "expiring", m.reusable(old, "files.example.com"))

	assert.Equal(t, "empty chain", m.reusable(cryptotls.Certificate{}, "localhost"))
}

func TestIssueSelfSigned_IPHost(t *testing.T) {
	cert := issuedPair(t, "192.0.2.10", time.Now())
	m := NewTLSManager(&config.TLSConfig{}, nil)
	assert.Empty(t, m.reusable(cert, "192.0.2.10"))
}
