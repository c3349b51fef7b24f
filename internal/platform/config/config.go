// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// PublicOrigin is the public origin (scheme + host + port) used to build
	// absolute download links.
	// Example: "https://files.example.com"
	PublicOrigin string `toml:"public_origin"`

	// ListenAddr is the address to listen on.
	// Example: ":8000"
	ListenAddr string `toml:"listen_addr"`

	// Server holds server-level settings.
	Server ServerConfig `toml:"server"`

	// TLS configuration
	TLS TLSConfig `toml:"tls"`

	// Store selects the share record persistence driver.
	Store StoreConfig `toml:"store"`

	// Blob selects where uploaded file bytes live.
	Blob BlobConfig `toml:"blob"`

	// Cache configuration (rate limit counters).
	Cache CacheConfig `toml:"cache"`

	// Uploads bounds owner uploads.
	Uploads UploadsConfig `toml:"uploads"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// HTTP holds per-service HTTP configuration.
	HTTP HTTPConfig `toml:"http"`
}

// HTTPConfig holds per-service HTTP configuration.
// Services are configured under [http.services.<svcname>].
// Interceptors are configured under [http.interceptors.<name>].
type HTTPConfig struct {
	// Services maps service names to their raw config maps.
	// Each service decodes its own config via cfg.Decode().
	Services map[string]map[string]any `toml:"services"`

	// Interceptors maps interceptor names to their raw config maps.
	// Ratelimit profiles live at [http.interceptors.ratelimit.profiles.<name>].
	// Per-service opt-in is [http.services.<svc>.ratelimit] with profile = "<name>".
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info in strict mode, debug in dev mode.
	Level string `toml:"level"`

	// AllowSensitive permits logging of share tokens and session ids.
	// Default: false. Use only for debugging.
	AllowSensitive bool `toml:"allow_sensitive"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is the cache driver name: "memory" (default) or "redis".
	Driver string `toml:"driver"`

	// Drivers holds per-driver configuration.
	// Example: [cache.drivers.redis] addr = "localhost:6379"
	Drivers map[string]any `toml:"drivers"`
}

// StoreConfig holds persistence settings for share records and access logs.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "mirror" (sqlite plus a JSON export).
	Driver string `toml:"driver"`

	// DataDir holds the database file and, for the mirror driver, the export.
	DataDir string `toml:"data_dir"`

	// Mirror holds options for the mirror driver.
	Mirror MirrorConfig `toml:"mirror"`
}

// MirrorConfig controls the JSON export written by the mirror driver.
type MirrorConfig struct {
	// IncludeSecrets writes share tokens into the export. Default: false.
	IncludeSecrets bool `toml:"include_secrets"`
}

// BlobConfig holds blob storage settings.
type BlobConfig struct {
	// Driver is "local" (default) or "s3".
	Driver string `toml:"driver"`

	// Drivers holds per-driver configuration.
	// Example: [blob.drivers.s3] endpoint = "localhost:9000"
	Drivers map[string]any `toml:"drivers"`
}

// UploadsConfig bounds owner uploads.
type UploadsConfig struct {
	// MaxBytes is the largest accepted upload. Default: 100 MiB.
	MaxBytes int64 `toml:"max_bytes"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies is a list of CIDR ranges for trusted reverse proxies.
	// Forwarded client addresses are only honored from these peers.
	// Default: ["127.0.0.0/8", "::1/128"]
	TrustedProxies []string `toml:"trusted_proxies"`

	// BootstrapAdmin holds super admin bootstrap configuration.
	BootstrapAdmin BootstrapAdminConfig `toml:"bootstrap_admin"`

	// SessionTTLSeconds is the lifetime of a login session.
	SessionTTLSeconds int `toml:"session_ttl_seconds"`

	// AllowRegistration enables POST /api/auth/register.
	// Pointer for presence detection; nil = use preset default.
	AllowRegistration *bool `toml:"allow_registration"`

	// SeededUsers are created on start-up when missing.
	SeededUsers []SeededUser `toml:"seeded_users"`
}

// SeededUser is one [[server.seeded_users]] entry.
type SeededUser struct {
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	Email       string `toml:"email"`
	DisplayName string `toml:"display_name"`
}

// BootstrapAdminConfig holds bootstrap admin credentials.
type BootstrapAdminConfig struct {
	// Username for the super admin. Default: "admin"
	Username string `toml:"username"`

	// Password for the super admin. If empty on first boot, a random password is generated.
	Password string `toml:"password"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned
	Mode string `toml:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// SelfSignedDir holds the generated certificate in selfsigned mode.
	// Default: <store.data_dir>/certs
	SelfSignedDir string `toml:"self_signed_dir"`
}

// BuildServiceConfig returns the raw service config map for a given service name.
// Returns nil if the service is not configured in [http.services.<name>].
func (c *Config) BuildServiceConfig(serviceName string) map[string]any {
	if c.HTTP.Services == nil {
		return nil
	}
	svcCfg, ok := c.HTTP.Services[serviceName]
	if !ok {
		return nil
	}
	result := make(map[string]any, len(svcCfg))
	for k, v := range svcCfg {
		result[k] = v
	}
	return result
}

// BuildAPIServiceConfig returns the api service config with global values
// (public origin, session lifetime) filled in where the service section is silent.
func (c *Config) BuildAPIServiceConfig() map[string]any {
	result := c.BuildServiceConfig("api")
	if result == nil {
		result = make(map[string]any)
	}
	if _, ok := result["public_origin"]; !ok {
		result["public_origin"] = c.PublicOrigin
	}
	if _, ok := result["session_ttl_seconds"]; !ok {
		result["session_ttl_seconds"] = c.Server.SessionTTLSeconds
	}
	if _, ok := result["allow_registration"]; !ok {
		result["allow_registration"] = c.RegistrationAllowed()
	}
	return result
}

// RegistrationAllowed reports whether self-service registration is on.
// Safe for nil pointer on the *bool field.
func (c *Config) RegistrationAllowed() bool {
	return c.Server.AllowRegistration != nil && *c.Server.AllowRegistration
}

// Redacted returns a string representation of the config with secrets redacted.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	fmt.Fprintf(&sb, "  Mode: %q,\n", c.Mode)
	fmt.Fprintf(&sb, "  PublicOrigin: %q,\n", c.PublicOrigin)
	fmt.Fprintf(&sb, "  ListenAddr: %q,\n", c.ListenAddr)
	sb.WriteString("  Server: {\n")
	fmt.Fprintf(&sb, "    TrustedProxies: %v,\n", c.Server.TrustedProxies)
	sb.WriteString("    BootstrapAdmin: {\n")
	fmt.Fprintf(&sb, "      Username: %q,\n", c.Server.BootstrapAdmin.Username)
	sb.WriteString("      Password: [REDACTED],\n")
	sb.WriteString("    },\n")
	fmt.Fprintf(&sb, "    SessionTTLSeconds: %d,\n", c.Server.SessionTTLSeconds)
	fmt.Fprintf(&sb, "    AllowRegistration: %v,\n", c.RegistrationAllowed())
	fmt.Fprintf(&sb, "    SeededUsers: %d,\n", len(c.Server.SeededUsers))
	sb.WriteString("  },\n")
	sb.WriteString("  TLS: {\n")
	fmt.Fprintf(&sb, "    Mode: %q,\n", c.TLS.Mode)
	fmt.Fprintf(&sb, "    CertFile: %q,\n", c.TLS.CertFile)
	fmt.Fprintf(&sb, "    KeyFile: %q,\n", c.TLS.KeyFile)
	fmt.Fprintf(&sb, "    SelfSignedDir: %q,\n", c.TLS.SelfSignedDir)
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	fmt.Fprintf(&sb, "    Driver: %q,\n", c.Store.Driver)
	fmt.Fprintf(&sb, "    DataDir: %q,\n", c.Store.DataDir)
	fmt.Fprintf(&sb, "    Mirror.IncludeSecrets: %v,\n", c.Store.Mirror.IncludeSecrets)
	sb.WriteString("  },\n")
	sb.WriteString("  Blob: {\n")
	fmt.Fprintf(&sb, "    Driver: %q,\n", c.Blob.Driver)
	fmt.Fprintf(&sb, "    Drivers: %v,\n", sortedKeys(c.Blob.Drivers))
	sb.WriteString("  },\n")
	sb.WriteString("  Cache: {\n")
	fmt.Fprintf(&sb, "    Driver: %q,\n", c.Cache.Driver)
	fmt.Fprintf(&sb, "    Drivers: %v,\n", sortedKeys(c.Cache.Drivers))
	sb.WriteString("  },\n")
	sb.WriteString("  Uploads: {\n")
	fmt.Fprintf(&sb, "    MaxBytes: %d,\n", c.Uploads.MaxBytes)
	sb.WriteString("  },\n")
	sb.WriteString("  Logging: {\n")
	fmt.Fprintf(&sb, "    Level: %q,\n", c.Logging.Level)
	fmt.Fprintf(&sb, "    AllowSensitive: %v,\n", c.Logging.AllowSensitive)
	sb.WriteString("  },\n")
	sb.WriteString("  HTTP: {\n")
	fmt.Fprintf(&sb, "    Services: %q,\n", sortedKeys(c.HTTP.Services))
	fmt.Fprintf(&sb, "    Interceptors: %q,\n", sortedKeys(c.HTTP.Interceptors))
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}

// PublicScheme returns "http" or "https" from PublicOrigin.
// Returns "https" if PublicOrigin is empty or unparseable.
func (c *Config) PublicScheme() string {
	if c.PublicOrigin == "" {
		return "https"
	}
	u, err := url.Parse(c.PublicOrigin)
	if err != nil || u.Scheme == "" {
		return "https"
	}
	return strings.ToLower(u.Scheme)
}

// Driver sections only print their names; their values may hold credentials.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
