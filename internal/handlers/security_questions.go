package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/pitwall/internal/auth"
	"github.com/BradenHooton/pitwall/internal/models"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
)

// SecurityQuestionServiceInterface is the step-up verifier as seen by HTTP
type SecurityQuestionServiceInterface interface {
	Catalog() []string
	Setup(ctx context.Context, userID, q1, a1, q2, a2 string) error
	Challenge(ctx context.Context, userID string) (*models.SecurityChallenge, error)
	Verify(ctx context.Context, userID, a1, a2 string) error
}

type SecurityQuestionHandler struct {
	requestGuard
	service SecurityQuestionServiceInterface
}

func NewSecurityQuestionHandler(service SecurityQuestionServiceInterface, recorder InputFailureRecorder, ipConfig *pkghttp.IPConfig) *SecurityQuestionHandler {
	return &SecurityQuestionHandler{
		requestGuard: requestGuard{recorder: recorder, ipConfig: ipConfig},
		service:      service,
	}
}

// SetupQuestionsRequest picks two catalog questions and answers them
type SetupQuestionsRequest struct {
	Question1 string `json:"question_1" validate:"required,max=200"`
	Answer1   string `json:"answer_1" validate:"required,max=200"`
	Question2 string `json:"question_2" validate:"required,max=200"`
	Answer2   string `json:"answer_2" validate:"required,max=200"`
}

// VerifyAnswersRequest answers the stored challenge
type VerifyAnswersRequest struct {
	Answer1 string `json:"answer_1" validate:"required,max=200"`
	Answer2 string `json:"answer_2" validate:"required,max=200"`
}

type CatalogResponse struct {
	Questions []string `json:"questions"`
}

// Catalog lists the fixed questions
// @Router /security-questions/catalog [get]
func (h *SecurityQuestionHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, CatalogResponse{Questions: h.service.Catalog()})
}

// GetChallenge returns the caller's two questions without the answers
// @Router /security-questions [get]
func (h *SecurityQuestionHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	challenge, err := h.service.Challenge(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotConfigured) {
			pkghttp.WriteNotFound(w, "Security questions are not configured")
			return
		}
		writeStoreError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, challenge)
}

// Setup stores or replaces the caller's questions
// @Router /security-questions [put]
func (h *SecurityQuestionHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req SetupQuestionsRequest
	if !h.decode(w, r, models.FlowQuestions, &req) {
		return
	}

	err := h.service.Setup(r.Context(), claims.UserID, req.Question1, req.Answer1, req.Question2, req.Answer2)
	if err != nil {
		if h.writePolicyError(w, r, models.FlowQuestions, claims.Email, err) {
			return
		}
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Verify checks both answers. Nothing says which one was wrong.
// @Router /security-questions/verify [post]
func (h *SecurityQuestionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req VerifyAnswersRequest
	if !h.decode(w, r, models.FlowQuestions, &req) {
		return
	}

	if err := h.service.Verify(r.Context(), claims.UserID, req.Answer1, req.Answer2); err != nil {
		if h.writePolicyError(w, r, models.FlowQuestions, claims.Email, err) {
			return
		}
		writeStoreError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// writeStoreError renders the errors left after the policy ones
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrVersionConflict):
		pkghttp.WriteConflict(w, "The record was changed concurrently, please retry")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
