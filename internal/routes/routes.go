package routes

import (
	"github.com/BradenHooton/pitwall/internal/auth"
	"github.com/BradenHooton/pitwall/internal/handlers"
	"github.com/BradenHooton/pitwall/internal/middleware"
	"github.com/BradenHooton/pitwall/internal/models"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups everything the router serves
type Handlers struct {
	Auth              *handlers.AuthHandler
	SecurityQuestions *handlers.SecurityQuestionHandler
	Password          *handlers.PasswordHandler
	Audit             *handlers.AuditHandler
	Admin             *handlers.AdminHandler
	Health            *handlers.HealthHandler
}

// Deps are the session and permission checks applied to protected routes
type Deps struct {
	TokenManager *auth.TokenManager
	Revocations  auth.TokenRevocationChecker
	Guard        *auth.CapabilityGuard
	IPConfig     *pkghttp.IPConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, deps Deps) {
	signInLimit := middleware.RateLimitByIP(middleware.SignInRateLimit(), deps.IPConfig)
	resetLimit := middleware.RateLimitByIP(middleware.ResetRateLimit(), deps.IPConfig)

	// Public routes - no authentication required
	router.Get("/health", h.Health.Health)
	router.Get("/security-questions/catalog", h.SecurityQuestions.Catalog)

	router.With(signInLimit).Post("/auth/sign-up", h.Auth.SignUp)
	router.With(signInLimit).Post("/auth/sign-in", h.Auth.SignIn)
	router.With(signInLimit).Post("/auth/refresh", h.Auth.RefreshToken)

	router.With(resetLimit).Post("/auth/password/reset/challenge", h.Password.ResetChallenge)
	router.With(resetLimit).Post("/auth/password/reset", h.Password.Reset)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddlewareWithRevocation(deps.TokenManager, deps.Revocations, auth.RevocationConfig{FailClosed: true}))

		r.Post("/auth/sign-out", h.Auth.SignOut)
		r.Get("/auth/me", h.Auth.Me)

		r.Group(func(r chi.Router) {
			r.Use(deps.Guard.Require(models.CapProfileManage))

			r.Get("/security-questions", h.SecurityQuestions.GetChallenge)
			r.Put("/security-questions", h.SecurityQuestions.Setup)
			r.With(middleware.RateLimitByUser(middleware.VerifyRateLimit(), deps.IPConfig)).
				Post("/security-questions/verify", h.SecurityQuestions.Verify)

			r.Get("/password/status", h.Password.Status)
			r.With(middleware.RateLimitByUser(middleware.VerifyRateLimit(), deps.IPConfig)).
				Post("/password/change", h.Password.Change)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.Guard.Require(models.CapAuditRead))
			r.Get("/login-attempts", h.Audit.LoginAttempts)
			r.Get("/lockouts", h.Audit.Lockouts)
		r.Get("/lockout-history", h.Audit.LockoutHistory)
			r.Get("/access-failures", h.Audit.AccessFailures)
			r.Get("/input-failures", h.Audit.InputFailures)
		})

		r.With(deps.Guard.Require(models.CapUsersManage)).
			Post("/admin/users/{id}/unlock", h.Admin.UnlockUser)
	})
}
