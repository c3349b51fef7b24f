package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

// AccessLogMiddleware writes one "request" line per response with status,
// bytes and duration. Base fields come from the context logger set by
// RequestLoggerMiddleware; without it only request_id and method are added.
// Server errors log at warn.
func AccessLogMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	log = logutil.NoopIfNil(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger, ok := appctx.LoggerFromContext(r.Context())
				if !ok {
					logger = log.With(
						"request_id", chimw.GetReqID(r.Context()),
						"method", r.Method,
					)
				}

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelWarn
				}

				logger.Log(r.Context(), level, "request",
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
