package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders returns a middleware that adds security headers to all responses.
// Console responses carry live session data, so none of them may be cached.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	production := config.Env == "production"

	headers := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"X-DNS-Prefetch-Control":  "off",
		"Cache-Control":           "no-store",
		"Pragma":                  "no-cache",
		"Permissions-Policy":      "camera=(), geolocation=(), microphone=(), payment=(), usb=()",
		"Content-Security-Policy": "default-src 'none'; connect-src 'self'; frame-ancestors 'none'; base-uri 'none'; form-action 'self'",
	}
	if production {
		headers["Cross-Origin-Opener-Policy"] = "same-origin"
		headers["Cross-Origin-Resource-Policy"] = "same-origin"
	} else {
		// Local front-end dev servers connect from another port
		headers["Content-Security-Policy"] = "default-src 'none'; connect-src 'self' http: ws:; frame-ancestors 'self'"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range headers {
				w.Header().Set(name, value)
			}

			// HSTS only over HTTPS
			if production && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
