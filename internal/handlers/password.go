package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BradenHooton/pitwall/internal/auth"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/internal/services"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
)

// PasswordServiceInterface is the rotation policy as seen by HTTP
type PasswordServiceInterface interface {
	StatusByID(ctx context.Context, userID string) (models.PasswordStatus, error)
	ChangePassword(ctx context.Context, in services.ChangePasswordInput) error
	ResetChallenge(ctx context.Context, email string) (*models.SecurityChallenge, error)
	ResetPassword(ctx context.Context, in services.ResetPasswordInput) error
}

type PasswordHandler struct {
	requestGuard
	service PasswordServiceInterface
	timing  *auth.TimingDelay
}

func NewPasswordHandler(service PasswordServiceInterface, timing *auth.TimingDelay, recorder InputFailureRecorder, ipConfig *pkghttp.IPConfig) *PasswordHandler {
	return &PasswordHandler{
		requestGuard: requestGuard{recorder: recorder, ipConfig: ipConfig},
		service:      service,
		timing:       timing,
	}
}

// ChangePasswordRequest is the signed-in rotation request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=256"`
	NewPassword     string `json:"new_password" validate:"required"`
	Answer1         string `json:"answer_1" validate:"required,max=200"`
	Answer2         string `json:"answer_2" validate:"required,max=200"`
}

// ResetChallengeRequest asks for the questions of an account
type ResetChallengeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (r *ResetChallengeRequest) submittedEmail() string { return r.Email }

// ResetPasswordRequest is the signed-out rotation request
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	NewPassword string `json:"new_password" validate:"required"`
	Answer1     string `json:"answer_1" validate:"required,max=200"`
	Answer2     string `json:"answer_2" validate:"required,max=200"`
}

func (r *ResetPasswordRequest) submittedEmail() string { return r.Email }

// Status reports whether the minimum age allows a change now
// @Router /password/status [get]
func (h *PasswordHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	status, err := h.service.StatusByID(r.Context(), claims.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// Change runs the full rotation flow for the signed-in user
// @Router /password/change [post]
func (h *PasswordHandler) Change(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, models.FlowPasswordChange, &req) {
		return
	}

	meta := h.clientMeta(r)
	err := h.service.ChangePassword(r.Context(), services.ChangePasswordInput{
		UserID:          claims.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		Answer1:         req.Answer1,
		Answer2:         req.Answer2,
		IPAddress:       meta.IP,
		UserAgent:       meta.UserAgent,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrLockedOut):
			pkghttp.WriteError(w, http.StatusLocked, "account_locked", "Account is temporarily locked")
		default:
			if !h.writePolicyError(w, r, models.FlowPasswordChange, claims.Email, err) {
				writeStoreError(w, err)
			}
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetChallenge returns the questions for an email. Unknown emails and
// accounts without questions get the same reply.
// @Router /auth/password/reset/challenge [post]
func (h *PasswordHandler) ResetChallenge(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ResetChallengeRequest
	if !h.decode(w, r, models.FlowPasswordReset, &req) {
		return
	}

	challenge, err := h.service.ResetChallenge(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotConfigured) {
			h.wait(r, start)
			pkghttp.WritePolicyViolation(w, "security_questions_not_configured", "Password reset is not available for this account")
			return
		}
		writeStoreError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, challenge)
}

// Reset rotates the password of a signed-out user after step-up
// @Router /auth/password/reset [post]
func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ResetPasswordRequest
	if !h.decode(w, r, models.FlowPasswordReset, &req) {
		return
	}

	meta := h.clientMeta(r)
	err := h.service.ResetPassword(r.Context(), services.ResetPasswordInput{
		Email:       req.Email,
		NewPassword: req.NewPassword,
		Answer1:     req.Answer1,
		Answer2:     req.Answer2,
		IPAddress:   meta.IP,
		UserAgent:   meta.UserAgent,
	})
	if err != nil {
		// Accounts without questions answer like unknown emails.
		if errors.Is(err, models.ErrNotConfigured) || errors.Is(err, models.ErrVerificationFailed) {
			h.wait(r, start)
			pkghttp.WritePolicyViolation(w, "verification_failed", "Security answers did not match")
			return
		}
		if !h.writePolicyError(w, r, models.FlowPasswordReset, req.Email, err) {
			writeStoreError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PasswordHandler) wait(r *http.Request, start time.Time) {
	if h.timing != nil {
		h.timing.WaitFrom(r.Context(), start)
	}
}
