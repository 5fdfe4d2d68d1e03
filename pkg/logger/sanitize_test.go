package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"driver@team.com", "d*****@****.com"},
		{"a@b.io", "a@*.io"},
		{"no-at-sign", "[invalid-email]"},
		{"two@@signs.com", "[invalid-email]"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizedEmail(tt.input))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("email=a@b.com"))
	assert.True(t, SanitizeQueryString("answer_1=rex"))
	assert.False(t, SanitizeQueryString("limit=50&offset=0"))
}

func TestAuditLogger_LogLockout(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	al.LogLockout(context.Background(), "driver@team.com", until, 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, EventLockoutApplied, line["event_type"])
	assert.Equal(t, "d*****@****.com", line["email"])
	assert.Equal(t, "2026-03-01T12:00:00Z", line["locked_until"])
	assert.Equal(t, "2", line["lockout_count"])
}
