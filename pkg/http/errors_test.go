package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/adminguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name     string
		write    func(http.ResponseWriter)
		wantCode int
		wantErr  string
	}{
		{"custom", func(w http.ResponseWriter) { pkghttp.WriteError(w, http.StatusForbidden, "insufficient_privilege", "msg") }, http.StatusForbidden, "insufficient_privilege"},
		{"bad request", func(w http.ResponseWriter) { pkghttp.WriteBadRequest(w, "msg") }, http.StatusBadRequest, "bad_request"},
		{"too many", func(w http.ResponseWriter) { pkghttp.WriteTooManyRequests(w, "msg") }, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"internal", func(w http.ResponseWriter) { pkghttp.WriteInternalError(w, "msg") }, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp pkghttp.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, pkghttp.ErrorResponse{Error: tt.wantErr, Message: "msg"}, resp)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	pkghttp.WriteJSON(rec, http.StatusOK, map[string]int{"active_sessions": 2})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active_sessions":2}`, rec.Body.String())
}
