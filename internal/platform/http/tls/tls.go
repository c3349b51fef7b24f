// Package tls loads or generates the server certificate for the configured
// tls.mode.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

var (
	ErrInvalidTLSMode = errors.New("invalid TLS mode")
	ErrMissingCert    = errors.New("missing certificate or key file")
)

const (
	selfSignedValidity = 365 * 24 * time.Hour
	renewBefore        = 24 * time.Hour

	certFileName = "server.crt"
	keyFileName  = "server.key"
)

// TLSManager resolves the server certificate for one tls config section.
type TLSManager struct {
	cfg    *config.TLSConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewTLSManager(cfg *config.TLSConfig, logger *slog.Logger) *TLSManager {
	return &TLSManager{cfg: cfg, logger: logutil.NoopIfNil(logger), now: time.Now}
}

// GetTLSConfig returns nil in "off" mode. hostname is only used by
// selfsigned mode, which puts it in the certificate's SANs.
func (m *TLSManager) GetTLSConfig(hostname string) (*cryptotls.Config, error) {
	var (
		cert cryptotls.Certificate
		err  error
	)
	switch m.cfg.Mode {
	case "off":
		return nil, nil
	case "static":
		cert, err = m.static()
	case "selfsigned":
		cert, err = m.selfSigned(hostname)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTLSMode, m.cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS12,
	}, nil
}

func (m *TLSManager) static() (cryptotls.Certificate, error) {
	if m.cfg.CertFile == "" || m.cfg.KeyFile == "" {
		return cryptotls.Certificate{}, ErrMissingCert
	}
	cert, err := cryptotls.LoadX509KeyPair(m.cfg.CertFile, m.cfg.KeyFile)
	if err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("load certificate: %w", err)
	}
	m.logger.Info("loaded static TLS certificate", "cert_file", m.cfg.CertFile)
	return cert, nil
}

// selfSigned reuses the stored pair while it covers hostname and has more
// than renewBefore left; otherwise it writes a fresh one.
func (m *TLSManager) selfSigned(hostname string) (cryptotls.Certificate, error) {
	dir := m.cfg.SelfSignedDir
	if dir == "" {
		dir = filepath.Join(".fileshare", "certs")
	}
	certPath := filepath.Join(dir, certFileName)
	keyPath := filepath.Join(dir, keyFileName)

	if cert, err := cryptotls.LoadX509KeyPair(certPath, keyPath); err == nil {
		reason := m.reusable(cert, hostname)
		if reason == "" {
			m.logger.Info("reusing self-signed certificate", "cert_file", certPath)
			return cert, nil
		}
		m.logger.Info("replacing self-signed certificate", "reason", reason)
	}

	certPEM, keyPEM, notAfter, err := issueSelfSigned(hostname, m.now())
	if err != nil {
		return cryptotls.Certificate{}, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("create cert dir: %w", err)
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return cryptotls.Certificate{}, fmt.Errorf("write key: %w", err)
	}
	m.logger.Info("generated self-signed certificate",
		"cert_file", certPath,
		"hostname", hostname,
		"not_after", notAfter)

	return cryptotls.X509KeyPair(certPEM, keyPEM)
}

// reusable returns an empty string when cert can keep serving hostname.
func (m *TLSManager) reusable(cert cryptotls.Certificate, hostname string) string {
	if len(cert.Certificate) == 0 {
		return "empty chain"
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return "unparseable"
	}
	if !m.now().Add(renewBefore).Before(leaf.NotAfter) {
		return "expiring"
	}
	if hostname != "" && leaf.VerifyHostname(hostname) != nil {
		return "hostname changed"
	}
	return ""
}

// issueSelfSigned returns PEM-encoded certificate and PKCS#8 key for
// hostname plus the loopback names.
func issueSelfSigned(hostname string, now time.Time) (certPEM, keyPEM []byte, notAfter time.Time, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("generate serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hostname, Organization: []string{"fileshare development"}},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	switch ip := net.ParseIP(hostname); {
	case ip != nil:
		tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
	case hostname != "" && hostname != "localhost":
		tmpl.DNSNames = append([]string{hostname}, tmpl.DNSNames...)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, tmpl.NotAfter, nil
}
