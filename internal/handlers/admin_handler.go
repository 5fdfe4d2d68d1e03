package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/pitwall/internal/auth"
	"github.com/BradenHooton/pitwall/internal/models"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdminServiceInterface defines the administrator service contract.
type AdminServiceInterface interface {
	UnlockUser(ctx context.Context, actorID, userID string) error
}

// AdminHandler handles administrator HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// UnlockUser handles POST /admin/users/{id}/unlock
func (h *AdminHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	userID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(userID); err != nil {
		pkghttp.WriteBadRequest(w, "invalid user id")
		return
	}

	if err := h.service.UnlockUser(r.Context(), claims.UserID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
