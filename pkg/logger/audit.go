package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is one security-relevant thing an admin console did. Empty
// fields are left out of the record.
type AuditEvent struct {
	EventType     string
	TabID         string
	UserID        string
	Email         string // masked on write
	SessionID     string
	IPAddress     string
	Country       string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit records through slog under the "audit" message
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger, now: time.Now}
}

// LogAuthAttempt records a login attempt; failures are logged at warn
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.write(level, "auth", event, slog.Bool("success", event.Success))
}

// LogSessionEvent records a session start, restore, logout or expiry
func (al *AuditLogger) LogSessionEvent(event AuditEvent) {
	al.write(slog.LevelInfo, "session", event)
}

func (al *AuditLogger) write(level slog.Level, auditType string, event AuditEvent, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}, extra...)

	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	for _, field := range [...]struct{ key, val string }{
		{"tab_id", event.TabID},
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"ip_address", event.IPAddress},
		{"country", event.Country},
		{"failure_reason", event.FailureReason},
	} {
		if field.val != "" {
			attrs = append(attrs, slog.String(field.key, field.val))
		}
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
