// Package logutil provides nil-safe logger helpers and level parsing.
package logutil

import (
	"io"
	"log/slog"
	"strings"
)

// LevelTrace sits below debug; slog has no trace level of its own.
const LevelTrace = slog.LevelDebug - 4

// noop is a package-level discard logger, created once.
var noop = slog.New(slog.NewTextHandler(io.Discard, nil))

// Noop returns a logger that discards all output.
func Noop() *slog.Logger { return noop }

// NoopIfNil returns l when non-nil, otherwise a discard logger.
// Intended as the first line in constructors that accept *slog.Logger.
func NoopIfNil(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return noop
}

// ParseLevel maps a config level name to a slog level.
// Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactToken shortens a capability token to a prefix safe for logs.
// With allowSensitive the token is returned unchanged.
func RedactToken(token string, allowSensitive bool) string {
	if allowSensitive {
		return token
	}
	if len(token) <= 6 {
		return "[REDACTED]"
	}
	return token[:6] + "..."
}
