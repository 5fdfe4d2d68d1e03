package http

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// MaxUserAgentLen bounds the user agent stored with audit records
const MaxUserAgentLen = 512

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ClientMeta is the best-effort origin of a request. Audit only, never used
// for authorization decisions.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// ExtractClientMeta reads the client IP and a truncated user agent
func ExtractClientMeta(r *http.Request, config *IPConfig) ClientMeta {
	return ClientMeta{
		IP:        ExtractClientIP(r, config),
		UserAgent: truncateUserAgent(r.UserAgent()),
	}
}

// ExtractClientIP returns the client address. Forwarding headers are honored
// only when the direct peer is inside one of the trusted proxy ranges;
// otherwise RemoteAddr wins.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddrIP(r)

	if config == nil || !inTrustedRange(remoteIP, config.TrustedProxies) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			candidate = strings.TrimSpace(candidate)
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

func remoteAddrIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func inTrustedRange(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}
	return false
}

func truncateUserAgent(ua string) string {
	if len(ua) <= MaxUserAgentLen {
		return ua
	}
	ua = ua[:MaxUserAgentLen]
	for !utf8.ValidString(ua) {
		ua = ua[:len(ua)-1]
	}
	return ua
}
