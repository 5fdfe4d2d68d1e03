package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		config     *pkghttp.IPConfig
		expected   string
	}{
		{
			name:       "direct connection ignores forwarding headers",
			remoteAddr: "203.0.113.10:54321",
			xff:        "1.2.3.4, 5.6.7.8",
			xRealIP:    "192.168.1.1",
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8", "127.0.0.1/32"}},
			expected:   "203.0.113.10",
		},
		{
			name:       "trusted proxy uses first forwarded address",
			remoteAddr: "10.0.0.5:54321",
			xff:        "203.0.113.42, 203.0.113.43, 10.0.0.5",
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:   "203.0.113.42",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.0.0.5:54321",
			xRealIP:    "203.0.113.7",
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:   "203.0.113.7",
		},
		{
			name:       "ipv6 trusted proxy",
			remoteAddr: "[::1]:54321",
			xff:        "2001:db8::1",
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"::1/128"}},
			expected:   "2001:db8::1",
		},
		{
			name:       "nil config trusts only RemoteAddr",
			remoteAddr: "203.0.113.10:54321",
			xff:        "1.2.3.4",
			expected:   "203.0.113.10",
		},
		{
			name:       "invalid CIDR ranges are skipped",
			remoteAddr: "203.0.113.10:54321",
			xff:        "1.2.3.4",
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"invalid-cidr-range"}},
			expected:   "203.0.113.10",
		},
		{
			name:       "spoofed localhost from untrusted peer",
			remoteAddr: "203.0.113.10:54321",
			xff:        "127.0.0.1, 203.0.113.10",
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:   "203.0.113.10",
		},
		{
			name:       "garbage forwarded values fall back to RemoteAddr",
			remoteAddr: "10.0.0.5:54321",
			xff:        "not-an-ip",
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:   "10.0.0.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			assert.Equal(t, tt.expected, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}

func TestExtractClientMeta_TruncatesUserAgent(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/sign-in", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("User-Agent", strings.Repeat("é", pkghttp.MaxUserAgentLen))

	meta := pkghttp.ExtractClientMeta(req, nil)

	assert.Equal(t, "203.0.113.10", meta.IP)
	assert.LessOrEqual(t, len(meta.UserAgent), pkghttp.MaxUserAgentLen)
	assert.True(t, utf8.ValidString(meta.UserAgent))
}
