package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/pitwall/internal/auth"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/internal/services"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	SignUp(ctx context.Context, in services.SignUpInput) (*models.SignInResult, bool, error)
	SignIn(ctx context.Context, in services.SignInInput) (*models.SignInResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.SignInResult, error)
	SignOut(ctx context.Context, claims *models.TokenClaims) error
	Me(ctx context.Context, userID string) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	requestGuard
	service AuthServiceInterface
	timing  *auth.TimingDelay
}

// NewAuthHandler creates a new AuthHandler. timing may be nil.
func NewAuthHandler(service AuthServiceInterface, timing *auth.TimingDelay, recorder InputFailureRecorder, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		requestGuard: requestGuard{recorder: recorder, ipConfig: ipConfig},
		service:      service,
		timing:       timing,
	}
}

// Request DTOs

// SignUpRequest represents the request body for sign-up
type SignUpRequest struct {
	Email     string  `json:"email" validate:"required,email,max=254"`
	Password  string  `json:"password" validate:"required"`
	Name      string  `json:"name" validate:"required,max=100"`
	TeamID    *string `json:"team_id,omitempty" validate:"omitempty,max=64"`
	CarNumber *int    `json:"car_number,omitempty" validate:"omitempty,gte=0,lte=999"`
	Question1 string  `json:"question_1" validate:"required"`
	Answer1   string  `json:"answer_1" validate:"required"`
	Question2 string  `json:"question_2" validate:"required"`
	Answer2   string  `json:"answer_2" validate:"required"`
}

func (r *SignUpRequest) submittedEmail() string { return r.Email }

// SignInRequest represents the request body for sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

func (r *SignInRequest) submittedEmail() string { return r.Email }

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SignUp handles account creation
// @Router /auth/sign-up [post]
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, models.FlowSignUp, &req) {
		return
	}

	meta := h.clientMeta(r)
	result, configured, err := h.service.SignUp(r.Context(), services.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      strings.TrimSpace(req.Name),
		TeamID:    req.TeamID,
		CarNumber: req.CarNumber,
		Question1: req.Question1,
		Answer1:   req.Answer1,
		Question2: req.Question2,
		Answer2:   req.Answer2,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		if h.writePolicyError(w, r, models.FlowSignUp, req.Email, err) {
			return
		}
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "An account with this email already exists")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, services.AuthResponse{
		TokenPair:           result.Tokens,
		User:                services.NewUserResponse(result.User),
		QuestionsConfigured: &configured,
	})
}

// SignIn handles lockout-guarded sign-in. Every failure renders the same 401
// after the same minimum delay; the reason stays in the attempt ledger.
// @Router /auth/sign-in [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SignInRequest
	if !h.decode(w, r, models.FlowSignIn, &req) {
		return
	}

	meta := h.clientMeta(r)
	result, err := h.service.SignIn(r.Context(), services.SignInInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		if h.timing != nil {
			h.timing.WaitFrom(r.Context(), start)
		}
		pkghttp.WriteUnauthorized(w, "Unable to sign in")
		return
	}

	info := result.LoginInfo
	pkghttp.WriteJSON(w, http.StatusOK, services.AuthResponse{
		TokenPair: result.Tokens,
		User:      services.NewUserResponse(result.User),
		LastLogin: &info,
	})
}

// RefreshToken handles token refresh
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !h.decode(w, r, models.FlowSignIn, &req) {
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Unable to refresh session")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.AuthResponse{
		TokenPair: result.Tokens,
		User:      services.NewUserResponse(result.User),
	})
}

// SignOut revokes the current token and every other session of the user
// @Router /auth/sign-out [post]
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.SignOut(r.Context(), claims); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in identity
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	user, err := h.service.Me(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "unauthorized")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.NewUserResponse(user))
}
