package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/adminguard/internal/auth"
	pkglogger "github.com/BradenHooton/adminguard/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// SecureLogger returns a middleware for logging HTTP requests with sensitive data redaction
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// The tab id is only known after TabIdentity has run further down the chain
			var tabID string
			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), tabCaptureKey{}, &tabID)))

			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path = path + "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path = r.URL.Path + "?" + r.URL.RawQuery
			}

			status := wrapped.Status()
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if tabID != "" {
				attrs = append(attrs, slog.String("tab_id", tabID))
			}

			logger.LogAttrs(context.Background(), level, "http_request", attrs...)
		})
	}
}

type tabCaptureKey struct{}

// CaptureTabID reports the resolved tab id back to SecureLogger. Mount it after TabIdentity.
func CaptureTabID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(tabCaptureKey{}).(*string); ok {
			*slot = auth.GetTabID(r)
		}
		next.ServeHTTP(w, r)
	})
}
