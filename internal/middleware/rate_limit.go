package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/adminguard/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	TrustedProxies    []string
}

// DefaultLoginRateLimit returns the per-IP ceiling for login submissions
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
	}
}

// RateLimitByIP limits requests per client IP. It sits in front of the per-tab
// attempt limits and only caps raw request volume from one address.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	ipConfig := &pkghttp.IPConfig{TrustedProxies: config.TrustedProxies}

	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please slow down.")
		}),
	)
}
