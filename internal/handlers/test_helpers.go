package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/adminguard/internal/auth"
	"github.com/BradenHooton/adminguard/internal/services"
	"github.com/BradenHooton/adminguard/internal/sessionstore"
	pkghttp "github.com/BradenHooton/adminguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithTab binds the request to a tab as TabIdentity would
func WithTab(req *http.Request, tabID string) *http.Request {
	return req.WithContext(auth.WithTabID(req.Context(), tabID))
}

// NewTestRegistry builds consoles over an in-memory roster that authenticate
// through validator. Timers are slow enough never to fire during a test.
func NewTestRegistry(t *testing.T, validator services.Validator, now func() time.Time) *services.ConsoleRegistry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := sessionstore.NewStore(sessionstore.NewMemoryKV(), "", logger)

	cfg := services.OrchestratorConfig{
		Lockout:              services.DefaultLockoutConfig(),
		SessionTimeout:       30 * time.Minute,
		IdleTimeout:          10 * time.Minute,
		CountdownInterval:    time.Hour,
		SyncInterval:         time.Hour,
		CountBackendFailures: true,
		Now:                  now,
	}
	deps := services.OrchestratorDeps{
		Validator: validator,
		Geo:       &services.MockGeoResolver{},
		Logger:    logger,
	}
	registry := services.NewConsoleRegistry(services.NewConsoleFactory(cfg, deps, func(tabID string) services.SessionStore {
		return base.ForTab(tabID)
	}), logger)
	t.Cleanup(registry.Close)
	return registry
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}
