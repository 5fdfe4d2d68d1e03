package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/pitwall/internal/auth"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// SignInRateLimit bounds sign-in and refresh per client IP. The lockout
// engine handles per-account guessing; this caps spraying from one address.
func SignInRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// ResetRateLimit bounds the signed-out reset flow, which has no account
// lockout behind it.
func ResetRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 5, Window: time.Minute}
}

// VerifyRateLimit bounds step-up verification per signed-in user
func VerifyRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 5, Window: 5 * time.Minute}
}

// RateLimitByIP limits by the client IP. Forwarding headers count only when
// the peer is a trusted proxy.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByUser limits by the signed-in user, falling back to the client
// IP. Must run after the auth middleware.
func RateLimitByUser(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil {
				return "user:" + claims.UserID, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
}
