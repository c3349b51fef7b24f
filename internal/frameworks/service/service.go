// Package service defines the pluggable HTTP service contract used by the
// server. Each service owns one URL prefix and its own chi router.
package service

import (
	"log/slog"
	"net/http"
)

// Service is an HTTP surface mounted under "/<Prefix()>".
type Service interface {
	Handler() http.Handler
	// Prefix is the mount point without slashes. Empty mounts at root.
	Prefix() string
	Close() error
	// Unprotected lists service-relative paths that skip the session gate.
	Unprotected() []string
}

// NewService is the constructor function type for services.
type NewService func(conf map[string]any, log *slog.Logger) (Service, error)
