package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func userContext(subject string) context.Context {
	claims := &auth.Claims{}
	claims.Subject = subject
	return auth.WithClaims(context.Background(), claims, "token")
}

func decodeEvent(t *testing.T, entry observer.LoggedEntry) SecurityEvent {
	t.Helper()
	raw, ok := entry.ContextMap()["event_json"].(string)
	require.True(t, ok, "event_json field missing")

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestNewSecurityAuditor(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogQueryExecution(context.Background(), "c1", 3, time.Millisecond)

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "security_audit", recorded.All()[0].LoggerName)

	assert.NotNil(t, NewSecurityAuditor(nil).logger)
}

func TestLogSuspiciousValue(t *testing.T) {
	tests := []struct {
		name         string
		ctx          context.Context
		rejected     bool
		wantLevel    zapcore.Level
		wantSeverity string
		wantUser     string
	}{
		{"warned with user", userContext("user-123"), false, zapcore.WarnLevel, "warning", "user-123"},
		{"rejected without user", context.Background(), true, zapcore.ErrorLevel, "critical", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, recorded := setupTestLogger(t)
			auditor := NewSecurityAuditor(logger)

			auditor.LogSuspiciousValue(tt.ctx, SuspiciousValueDetails{
				Field:       "filters[0].value",
				Fingerprint: "s&sos",
				Rejected:    tt.rejected,
			})

			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantLevel, logs[0].Level)
			assert.Equal(t, "filters[0].value", logs[0].ContextMap()["field"])

			event := decodeEvent(t, logs[0])
			assert.Equal(t, EventSuspiciousValue, event.EventType)
			assert.Equal(t, tt.wantSeverity, event.Severity)
			assert.Equal(t, tt.wantUser, event.UserID)
		})
	}
}

func TestLogRejectedStatement_SanitizesQuery(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogRejectedStatement(userContext("user-9"), "c1", "UPDATE users SET password='hunter2'", "only SELECT queries are allowed")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)

	event := decodeEvent(t, logs[0])
	assert.Equal(t, EventRejectedStatement, event.EventType)
	assert.Equal(t, "c1", event.ConnectionID)
	assert.Equal(t, "user-9", event.UserID)

	details, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "only SELECT queries are allowed", details["reason"])
	assert.NotContains(t, details["query"], "hunter2")
}

func TestLogQueryExecution(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogQueryExecution(context.Background(), "c2", 42, 1500*time.Millisecond)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.InfoLevel, logs[0].Level)

	event := decodeEvent(t, logs[0])
	assert.Equal(t, EventQueryExecution, event.EventType)
	assert.Equal(t, "info", event.Severity)
	details := event.Details.(map[string]any)
	assert.Equal(t, float64(42), details["row_count"])
	assert.Equal(t, float64(1500), details["elapsed_ms"])
}
