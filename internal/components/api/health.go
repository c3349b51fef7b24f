package api

import (
	"context"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
)

// HealthResponse is the body of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck probes one dependency (database, blob store).
type HealthCheck func(ctx context.Context) error

// NewHealthHandler handles GET /api/healthz. Every check must pass within
// two seconds for a 200; otherwise the response is 503 "degraded".
func NewHealthHandler(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check(ctx); err != nil {
				appctx.GetLogger(r.Context()).Warn("health check failed", "error", err)
				WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
				return
			}
		}
		WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}
