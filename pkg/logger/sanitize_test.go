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

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "a****@*******.com", SanitizedEmail("admin@example.com"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("no-at-sign"))
}

func TestMaskedPhone(t *testing.T) {
	assert.Equal(t, "**********111", MaskedPhone("5491111111111"))
	assert.Equal(t, "**", MaskedPhone("12"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("phone=5491111111111"))
	assert.True(t, SanitizeQueryString("token=abc"))
	assert.False(t, SanitizeQueryString("month=2026-05&page=2"))
}

func TestAuditLogger_LogAdmissionRejected(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAdmissionRejected("booking", "198.51.100.1", 30*time.Second)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "admission", entry["audit_type"])
	assert.Equal(t, "booking", entry["limiter"])
	assert.Equal(t, "198.51.100.1", entry["ip_address"])
}

func TestAuditLogger_LogAuthAttempt_SuccessIsInfo(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAuthAttempt(AuditEvent{EventType: "login_success", Subject: "a****@*******.com", Success: true})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "login_success", entry["event_type"])
	assert.Equal(t, "a****@*******.com", entry["subject"])
}
