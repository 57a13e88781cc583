package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess   AuditEvent = "login_success"
	AuditLoginFailure   AuditEvent = "login_failure"
	AuditLogout         AuditEvent = "logout"
	AuditProfileUpdated AuditEvent = "profile_updated"
	AuditActivity       AuditEvent = "activity"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
	alerts *metricsCollector
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry. Activity beacons are frequent and
// go out at debug level.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)

	level := slog.LevelInfo
	if event == AuditActivity {
		level = slog.LevelDebug
	}
	al.logger.LogAttrs(r.Context(), level, "audit", baseAttrs...)
	al.alerts.recordEvent(event)
}

// logEvent is a convenience for events with a known principal.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, principalID int64, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.Int64("principal_id", principalID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed authentication attempt. Only the identifier the
// caller typed is recorded, never the secret.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
