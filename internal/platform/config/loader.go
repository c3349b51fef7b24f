package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// DefaultMaxUploadBytes is the upload limit when none is configured (100 MiB).
const DefaultMaxUploadBytes int64 = 100 << 20

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Nil or empty values leave the loaded value untouched.
type FlagOverrides struct {
	ListenAddr            *string
	PublicOrigin          *string
	TLSMode               *string
	AdminUsername         *string
	AdminPassword         *string
	StoreDriver           *string
	DataDir               *string
	BlobDriver            *string
	CacheDriver           *string
	LoggingLevel          *string
	LoggingAllowSensitive *string // "true", "false", or "" (unset)
	AllowRegistration     *string // "true", "false", or "" (unset)
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Mode   string        `toml:"mode"`
	Server *serverConfig `toml:"server"`

	PublicOrigin string `toml:"public_origin"`
	ListenAddr   string `toml:"listen_addr"`

	TLS     *TLSConfig      `toml:"tls"`
	Store   *storeConfig    `toml:"store"`
	Blob    *BlobConfig     `toml:"blob"`
	Cache   *CacheConfig    `toml:"cache"`
	Uploads *UploadsConfig  `toml:"uploads"`
	Logging *loggingConfig  `toml:"logging"`
	HTTP    *httpFileConfig `toml:"http"`
}

type httpFileConfig struct {
	Services     map[string]map[string]any `toml:"services"`
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

type loggingConfig struct {
	Level          string `toml:"level"`
	AllowSensitive *bool  `toml:"allow_sensitive"`
}

type storeConfig struct {
	Driver  string `toml:"driver"`
	DataDir string `toml:"data_dir"`
	Mirror  *struct {
		IncludeSecrets *bool `toml:"include_secrets"`
	} `toml:"mirror"`
}

type serverConfig struct {
	TrustedProxies    []string        `toml:"trusted_proxies"`
	BootstrapAdmin    *bootstrapAdmin `toml:"bootstrap_admin"`
	SessionTTLSeconds int             `toml:"session_ttl_seconds"`
	AllowRegistration *bool           `toml:"allow_registration"`
	SeededUsers       []SeededUser    `toml:"seeded_users"`
}

type bootstrapAdmin struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate enum fields and public_origin
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error. Undecoded TOML keys produce a warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := "strict"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	overlayFlags(cfg, opts.FlagOverrides)

	if cfg.TLS.SelfSignedDir == "" {
		cfg.TLS.SelfSignedDir = filepath.Join(cfg.Store.DataDir, "certs")
	}

	if err := validateEnums(cfg); err != nil {
		return nil, err
	}

	if err := validatePublicOrigin(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func ptrBool(b bool) *bool { return &b }

func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// defaultInterceptors holds the ratelimit profiles every preset ships with.
// "download" guards the anonymous download endpoint, "auth" guards login and register.
func defaultInterceptors() map[string]map[string]any {
	return map[string]map[string]any{
		"ratelimit": {
			"profiles": map[string]any{
				"download": map[string]any{
					"requests_per_window": int64(60),
					"window_seconds":      int64(60),
				},
				"auth": map[string]any{
					"requests_per_window": int64(10),
					"window_seconds":      int64(60),
				},
			},
		},
	}
}

// StrictConfig returns production-safe strict defaults.
func StrictConfig() *Config {
	return &Config{
		Mode:         string(ModeStrict),
		PublicOrigin: "http://localhost:8000",
		ListenAddr:   ":8000",
		Server: ServerConfig{
			TrustedProxies:    []string{"127.0.0.0/8", "::1/128"},
			SessionTTLSeconds: 8 * 60 * 60,
			AllowRegistration: ptrBool(false),
		},
		TLS: TLSConfig{
			Mode: "off",
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".fileshare",
		},
		Blob: BlobConfig{
			Driver: "local",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Uploads: UploadsConfig{
			MaxBytes: DefaultMaxUploadBytes,
		},
		Logging: LoggingConfig{
			Level:          "info",
			AllowSensitive: false,
		},
		HTTP: HTTPConfig{
			Services: map[string]map[string]any{
				"download": {"ratelimit": map[string]any{"profile": "download"}},
				"api":      {"ratelimit": map[string]any{"profile": "auth"}},
			},
			Interceptors: defaultInterceptors(),
		},
	}
}

// DevConfig returns development mode defaults.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.Server.SessionTTLSeconds = 24 * 60 * 60
	cfg.Server.AllowRegistration = ptrBool(true)
	cfg.Store.Driver = "mirror"
	cfg.Logging.Level = "debug"
	// No rate limiting opt-in in dev; profiles stay defined.
	cfg.HTTP.Services = nil
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.PublicOrigin != "" {
		cfg.PublicOrigin = fc.PublicOrigin
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil {
		if len(fc.Server.TrustedProxies) > 0 {
			cfg.Server.TrustedProxies = fc.Server.TrustedProxies
		}
		if fc.Server.BootstrapAdmin != nil {
			cfg.Server.BootstrapAdmin.Username = fc.Server.BootstrapAdmin.Username
			cfg.Server.BootstrapAdmin.Password = fc.Server.BootstrapAdmin.Password
		}
		if fc.Server.SessionTTLSeconds != 0 {
			cfg.Server.SessionTTLSeconds = fc.Server.SessionTTLSeconds
		}
		if fc.Server.AllowRegistration != nil {
			cfg.Server.AllowRegistration = ptrBool(*fc.Server.AllowRegistration)
		}
		if len(fc.Server.SeededUsers) > 0 {
			cfg.Server.SeededUsers = fc.Server.SeededUsers
		}
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.SelfSignedDir != "" {
			cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
		if fc.Store.Mirror != nil && fc.Store.Mirror.IncludeSecrets != nil {
			cfg.Store.Mirror.IncludeSecrets = *fc.Store.Mirror.IncludeSecrets
		}
	}

	if fc.Blob != nil {
		if fc.Blob.Driver != "" {
			cfg.Blob.Driver = fc.Blob.Driver
		}
		if fc.Blob.Drivers != nil {
			cfg.Blob.Drivers = fc.Blob.Drivers
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if fc.Cache.Drivers != nil {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}

	if fc.Uploads != nil && fc.Uploads.MaxBytes != 0 {
		cfg.Uploads.MaxBytes = fc.Uploads.MaxBytes
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		if fc.Logging.AllowSensitive != nil {
			cfg.Logging.AllowSensitive = *fc.Logging.AllowSensitive
		}
	}

	if fc.HTTP != nil {
		// A [http.services] table replaces the preset opt-ins wholesale so a
		// file can switch rate limiting off by omitting the service entry.
		if fc.HTTP.Services != nil {
			cfg.HTTP.Services = fc.HTTP.Services
		}
		if fc.HTTP.Interceptors != nil {
			if cfg.HTTP.Interceptors == nil {
				cfg.HTTP.Interceptors = make(map[string]map[string]any)
			}
			for name, ic := range fc.HTTP.Interceptors {
				cfg.HTTP.Interceptors[name] = mergeInterceptor(cfg.HTTP.Interceptors[name], ic)
			}
		}
	}
}

// mergeInterceptor overlays file-defined profiles on top of preset profiles.
func mergeInterceptor(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if k != "profiles" {
			out[k] = v
			continue
		}
		baseProfiles, _ := base["profiles"].(map[string]any)
		overlayProfiles, ok := v.(map[string]any)
		if !ok || baseProfiles == nil {
			out[k] = v
			continue
		}
		merged := make(map[string]any, len(baseProfiles)+len(overlayProfiles))
		for name, p := range baseProfiles {
			merged[name] = p
		}
		for name, p := range overlayProfiles {
			merged[name] = p
		}
		out[k] = merged
	}
	return out
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) {
	set := func(p *string) bool { return p != nil && *p != "" }

	if set(f.ListenAddr) {
		cfg.ListenAddr = *f.ListenAddr
	}
	if set(f.PublicOrigin) {
		cfg.PublicOrigin = *f.PublicOrigin
	}
	if set(f.TLSMode) {
		cfg.TLS.Mode = *f.TLSMode
	}
	if set(f.AdminUsername) {
		cfg.Server.BootstrapAdmin.Username = *f.AdminUsername
	}
	if set(f.AdminPassword) {
		cfg.Server.BootstrapAdmin.Password = *f.AdminPassword
	}
	if set(f.StoreDriver) {
		cfg.Store.Driver = *f.StoreDriver
	}
	if set(f.DataDir) {
		cfg.Store.DataDir = *f.DataDir
	}
	if set(f.BlobDriver) {
		cfg.Blob.Driver = *f.BlobDriver
	}
	if set(f.CacheDriver) {
		cfg.Cache.Driver = *f.CacheDriver
	}
	if set(f.LoggingLevel) {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if set(f.LoggingAllowSensitive) {
		cfg.Logging.AllowSensitive = *f.LoggingAllowSensitive == "true"
	}
	if set(f.AllowRegistration) {
		cfg.Server.AllowRegistration = ptrBool(*f.AllowRegistration == "true")
	}
}

// validateEnums validates enum-like config fields and returns an error for invalid values.
func validateEnums(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "selfsigned":
	case "static":
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("tls.mode static requires tls.cert_file and tls.key_file")
		}
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "sqlite", "mirror":
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of sqlite, mirror", cfg.Store.Driver)
	}
	if strings.TrimSpace(cfg.Store.DataDir) == "" {
		return fmt.Errorf("store.data_dir must not be empty")
	}

	switch cfg.Blob.Driver {
	case "", "local", "s3":
	default:
		return fmt.Errorf("invalid blob.driver %q: must be one of local, s3", cfg.Blob.Driver)
	}

	switch cfg.Cache.Driver {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory, redis", cfg.Cache.Driver)
	}

	if cfg.Uploads.MaxBytes < 0 {
		return fmt.Errorf("uploads.max_bytes must not be negative")
	}

	if cfg.Server.SessionTTLSeconds <= 0 {
		return fmt.Errorf("server.session_ttl_seconds must be positive")
	}

	for i, u := range cfg.Server.SeededUsers {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("server.seeded_users[%d]: username and password are required", i)
		}
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	return validateRatelimitConfig(cfg)
}

// validateRatelimitConfig validates ratelimit interceptor configuration.
// Profiles are defined at [http.interceptors.ratelimit.profiles.<name>].
// Services opt-in via [http.services.<svc>.ratelimit] with profile = "<name>".
// If a service references a profile, that profile must exist.
func validateRatelimitConfig(cfg *Config) error {
	profiles := make(map[string]bool)
	if rlCfg, ok := cfg.HTTP.Interceptors["ratelimit"]; ok {
		if profilesRaw, ok := rlCfg["profiles"]; ok {
			profilesMap, ok := profilesRaw.(map[string]any)
			if !ok {
				return fmt.Errorf("http.interceptors.ratelimit.profiles must be a map")
			}
			for name, profile := range profilesMap {
				if _, ok := profile.(map[string]any); !ok {
					return fmt.Errorf("http.interceptors.ratelimit.profiles.%s must be a map", name)
				}
				profiles[name] = true
			}
		}
	}

	for svcName, svcCfg := range cfg.HTTP.Services {
		rlMap, ok := svcCfg["ratelimit"].(map[string]any)
		if !ok {
			continue
		}
		if profileStr, ok := rlMap["profile"].(string); ok && !profiles[profileStr] {
			return fmt.Errorf("http.services.%s.ratelimit references undefined profile %q", svcName, profileStr)
		}
	}

	return nil
}

// validatePublicOrigin checks the public_origin config value when set.
// Must be an absolute URL with http/https scheme, a host, no userinfo,
// query, fragment, or path. Whitespace is rejected, not trimmed.
func validatePublicOrigin(cfg *Config) error {
	if cfg.PublicOrigin == "" {
		return nil
	}

	origin := cfg.PublicOrigin

	if origin != strings.TrimSpace(origin) {
		return fmt.Errorf("invalid public_origin %q: must not contain leading or trailing whitespace", origin)
	}

	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid public_origin %q: %w", origin, err)
	}

	if !u.IsAbs() {
		return fmt.Errorf("invalid public_origin %q: must be an absolute URL with http or https scheme", origin)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("invalid public_origin %q: scheme must be http or https, got %q", origin, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("invalid public_origin %q: must include a host", origin)
	}
	if u.User != nil {
		return fmt.Errorf("invalid public_origin %q: must not include userinfo", origin)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("invalid public_origin %q: must not include a query string", origin)
	}
	if u.Fragment != "" {
		return fmt.Errorf("invalid public_origin %q: must not include a fragment", origin)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("invalid public_origin %q: must not include a path", origin)
	}

	return nil
}
