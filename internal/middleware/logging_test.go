package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logOnce(t *testing.T, env, target string, status int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := SecureLogger(logger, nil, env)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "pit-tablet/2.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	entry := logOnce(t, "development", "/audit/login-attempts?email=driver@example.com", http.StatusOK)

	assert.Equal(t, "/audit/login-attempts?[REDACTED]", entry["path"])
	assert.Equal(t, "pit-tablet/2.1", entry["user_agent"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestSecureLogger_KeepsPlainQuery(t *testing.T) {
	entry := logOnce(t, "development", "/audit/lockouts?limit=10", http.StatusOK)

	assert.Equal(t, "/audit/lockouts?limit=10", entry["path"])
}

func TestSecureLogger_ProductionRedactsUserAgent(t *testing.T) {
	entry := logOnce(t, "production", "/health", http.StatusServiceUnavailable)

	assert.Equal(t, "[REDACTED]", entry["user_agent"])
	assert.Equal(t, "ERROR", entry["level"])
	assert.EqualValues(t, http.StatusServiceUnavailable, entry["status"])
}

func TestSecureLogger_DeniedRequestsWarn(t *testing.T) {
	entry := logOnce(t, "development", "/audit/lockouts", http.StatusForbidden)

	assert.Equal(t, "WARN", entry["level"])
}
