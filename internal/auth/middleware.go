package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// TabContextKey is the key for storing the tab id in context
	TabContextKey contextKey = "tab_id"
)

// TabIdentity resolves the request's tab id from its signed token. A missing or
// invalid token gets a fresh tab id, returned in the cookie and the X-Admin-Tab header.
func TabIdentity(tm *TabTokenManager, cookies CookieConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tabID string
			if token, err := GetTabToken(r); err == nil && token != "" {
				if id, err := tm.Validate(token); err == nil {
					tabID = id
				} else {
					logger.Debug("rejected tab token", slog.Any("error", err))
				}
			}

			if tabID == "" {
				token, id, err := tm.Issue()
				if err != nil {
					logger.Error("failed to issue tab token", slog.Any("error", err))
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				SetTabCookie(w, token, cookies)
				w.Header().Set(TabHeaderName, token)
				tabID = id
			}

			ctx := WithTabID(r.Context(), tabID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithTabID returns a context carrying tabID
func WithTabID(ctx context.Context, tabID string) context.Context {
	return context.WithValue(ctx, TabContextKey, tabID)
}

// GetTabID extracts the tab id from request context
func GetTabID(r *http.Request) string {
	tabID, _ := r.Context().Value(TabContextKey).(string)
	return tabID
}
