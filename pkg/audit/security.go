// Package audit logs security-relevant query events in a structured form
// that log pipelines and SIEM systems can filter on.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
	"github.com/ekaya-inc/ekaya-canvas/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSuspiciousValue is logged when libinjection flags a clause value.
	EventSuspiciousValue SecurityEventType = "suspicious_clause_value"
	// EventRejectedStatement is logged when the read-only guard refuses a statement.
	EventRejectedStatement SecurityEventType = "rejected_statement"
	// EventQueryExecution is logged for every executed statement.
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent is the JSON document attached to every audit log line.
type SecurityEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    SecurityEventType `json:"event_type"`
	ConnectionID string            `json:"connection_id,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	Details      any               `json:"details"`
	Severity     string            `json:"severity"` // info, warning, critical
}

// SuspiciousValueDetails describes one flagged clause value.
type SuspiciousValueDetails struct {
	Field       string `json:"field"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Rejected    bool   `json:"rejected"`
}

// SecurityAuditor writes security events under the "security_audit" logger.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor logging under a dedicated namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogSuspiciousValue records a clause value that looks like SQL injection.
// Rejected values are logged at ERROR, values that were only warned about at WARN.
func (a *SecurityAuditor) LogSuspiciousValue(ctx context.Context, details SuspiciousValueDetails) {
	severity := "warning"
	if details.Rejected {
		severity = "critical"
	}
	event := a.event(ctx, EventSuspiciousValue, "", details, severity)

	fields := []zap.Field{
		zap.String("event_json", marshalEvent(event)),
		zap.String("field", details.Field),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("user_id", event.UserID),
		zap.String("severity", severity),
	}
	if details.Rejected {
		a.logger.Error("Suspicious clause value rejected", fields...)
		return
	}
	a.logger.Warn("Suspicious clause value", fields...)
}

// LogRejectedStatement records a statement refused by the read-only guard.
// Only a sanitized form of the statement is logged.
func (a *SecurityAuditor) LogRejectedStatement(ctx context.Context, connectionID, statement, reason string) {
	event := a.event(ctx, EventRejectedStatement, connectionID, map[string]string{
		"reason": reason,
		"query":  logging.SanitizeQuery(statement),
	}, "warning")

	a.logger.Warn("Statement rejected",
		zap.String("event_json", marshalEvent(event)),
		zap.String("connection_id", connectionID),
		zap.String("reason", reason),
		zap.String("user_id", event.UserID),
		zap.String("severity", "warning"),
	)
}

// LogQueryExecution records an executed statement for the audit trail.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, connectionID string, rowCount int, elapsed time.Duration) {
	event := a.event(ctx, EventQueryExecution, connectionID, map[string]any{
		"row_count":  rowCount,
		"elapsed_ms": elapsed.Milliseconds(),
	}, "info")

	a.logger.Info("Query executed",
		zap.String("event_json", marshalEvent(event)),
		zap.String("connection_id", connectionID),
		zap.Int("row_count", rowCount),
		zap.String("user_id", event.UserID),
		zap.String("severity", "info"),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, connectionID string, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		ConnectionID: connectionID,
		UserID:       auth.SubjectFromContext(ctx),
		Details:      details,
		Severity:     severity,
	}
}

// marshalEvent serializes known types, which cannot fail.
func marshalEvent(event SecurityEvent) string {
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}
