package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	tests := []struct {
		name     string
		checks   map[string]HealthCheckFunc
		wantCode int
		want     map[string]string
	}{
		{
			name:     "all up",
			checks:   map[string]HealthCheckFunc{"database": up, "sessions": up},
			wantCode: http.StatusOK,
			want:     map[string]string{"status": "healthy", "database": "up", "sessions": "up"},
		},
		{
			name:     "roster backend down",
			checks:   map[string]HealthCheckFunc{"database": up, "sessions": down},
			wantCode: http.StatusServiceUnavailable,
			want:     map[string]string{"status": "unhealthy", "database": "up", "sessions": "down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Health(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			var body map[string]string
			AssertJSONResponse(t, rec, tt.wantCode, &body)
			assert.Equal(t, tt.want, body)
		})
	}
}
