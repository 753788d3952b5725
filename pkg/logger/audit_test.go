package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_LogAuthAttempt_MasksEmail(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAuthAttempt(AuditEvent{
		EventType:     "login_failed",
		Email:         "admin@bank.test",
		FailureReason: "invalid_credentials",
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "auth", record["audit_type"])
	assert.Equal(t, "a****@****.test", record["email"])
	assert.Equal(t, "invalid_credentials", record["failure_reason"])
	assert.NotContains(t, record, "session_id")
}

func TestAuditLogger_LogSessionEvent(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogSessionEvent(AuditEvent{
		EventType: "session_expired",
		SessionID: "abc",
		Metadata:  map[string]string{"reason": "idle_timeout"},
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "session", record["audit_type"])
	assert.Equal(t, "idle_timeout", record["reason"])
}

func TestAuditLogger_SuccessfulAttempt(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	al.now = func() time.Time { return time.Date(2026, 4, 2, 8, 30, 0, 0, time.FixedZone("EST", -5*3600)) }

	al.LogAuthAttempt(AuditEvent{EventType: "login_succeeded", TabID: "tab-1", Success: true})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, true, record["success"])
	assert.Equal(t, "tab-1", record["tab_id"])
	assert.Equal(t, "2026-04-02T13:30:00Z", record["timestamp"])
	assert.NotContains(t, record, "email")
}
