package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	pkghttp "github.com/BradenHooton/adminguard/pkg/http"
)

// HealthCheckFunc probes one dependency
type HealthCheckFunc func(ctx context.Context) error

// Health reports "up" or "down" for every named dependency, 503 if any is down
func Health(checks map[string]HealthCheckFunc) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "healthy"}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				body[name] = "down"
				status = http.StatusServiceUnavailable
				body["status"] = "unhealthy"
				continue
			}
			body[name] = "up"
		}

		pkghttp.WriteJSON(w, status, body)
	}
}
