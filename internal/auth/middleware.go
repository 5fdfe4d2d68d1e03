package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/pitwall/internal/models"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	"github.com/go-chi/chi/v5"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
)

// TokenRevocationChecker defines the interface for checking if tokens are revoked
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// RevocationConfig holds configuration for token revocation behavior
type RevocationConfig struct {
	FailClosed bool // deny when the revocation lookup errors
}

// AuthMiddleware validates JWT tokens and injects user claims into context
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return AuthMiddlewareWithRevocation(tm, nil, RevocationConfig{FailClosed: true})
}

// AuthMiddlewareWithRevocation validates JWT tokens and checks revocation status
func AuthMiddlewareWithRevocation(tm *TokenManager, revocationChecker TokenRevocationChecker, revocationConfig RevocationConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := tm.ValidateToken(r.Context(), tokenString)
			if err != nil {
				if errors.Is(err, ErrTokenKeyUnavailable) && !errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteServiceUnavailable(w, "unable to verify token")
					return
				}
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			// Refresh tokens are only accepted by /auth/refresh.
			if claims.Type != models.TokenTypeAccess {
				pkghttp.WriteUnauthorized(w, "refresh tokens cannot be used for API access")
				return
			}

			if revocationChecker != nil && claims.ID != "" {
				revoked, err := revocationChecker.IsTokenRevoked(r.Context(), claims.ID)
				if err != nil && revocationConfig.FailClosed {
					pkghttp.WriteServiceUnavailable(w, "unable to verify token status")
					return
				}
				if revoked {
					pkghttp.WriteUnauthorized(w, "token has been revoked")
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UserRepository resolves the caller's current role
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AccessFailureRecorder receives authorization denials
type AccessFailureRecorder interface {
	RecordAccessFailure(ctx context.Context, f models.AccessFailure)
}

// CapabilityGuard enforces the role capability table on protected routes.
// The role is read from the user record, not the token, so demotions take
// effect immediately.
type CapabilityGuard struct {
	users    UserRepository
	recorder AccessFailureRecorder
	ipConfig *pkghttp.IPConfig
}

func NewCapabilityGuard(users UserRepository, recorder AccessFailureRecorder, ipConfig *pkghttp.IPConfig) *CapabilityGuard {
	return &CapabilityGuard{users: users, recorder: recorder, ipConfig: ipConfig}
}

// Require denies requests whose user lacks capability
func (g *CapabilityGuard) Require(capability models.Capability) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				g.deny(r, nil, nil, capability, "no session")
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			user, err := g.users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					g.deny(r, claims, nil, capability, "user not found")
					pkghttp.WriteUnauthorized(w, "unauthorized")
					return
				}
				pkghttp.WriteServiceUnavailable(w, "unable to resolve permissions")
				return
			}

			if !user.Role.Can(capability) {
				g.deny(r, claims, user, capability, "missing capability")
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (g *CapabilityGuard) deny(r *http.Request, claims *models.TokenClaims, user *models.User, capability models.Capability, reason string) {
	if g.recorder == nil {
		return
	}

	meta := pkghttp.ExtractClientMeta(r, g.ipConfig)
	f := models.AccessFailure{
		Resource:  routePattern(r),
		Action:    r.Method,
		Reason:    reason,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Metadata:  models.FailureMetadata{"capability": string(capability)},
	}
	if claims != nil {
		f.UserID = &claims.UserID
		if claims.Email != "" {
			email := claims.Email
			f.Email = &email
		}
	}
	if user != nil {
		role := string(user.Role)
		f.Role = &role
	}

	g.recorder.RecordAccessFailure(r.Context(), f)
}

// routePattern names the matched route. Inside a mounted subrouter the
// pattern is still a wildcard when the guard runs, so the path is used.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" && !strings.HasSuffix(p, "*") {
			return p
		}
	}
	return r.URL.Path
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
