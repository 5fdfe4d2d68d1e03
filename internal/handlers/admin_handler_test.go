package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/pitwall/internal/handlers"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/stretchr/testify/assert"
)

// mockAdminService implements handlers.AdminServiceInterface for testing
type mockAdminService struct {
	UnlockUserFunc func(ctx context.Context, actorID, userID string) error
}

func (m *mockAdminService) UnlockUser(ctx context.Context, actorID, userID string) error {
	if m.UnlockUserFunc == nil {
		return nil
	}
	return m.UnlockUserFunc(ctx, actorID, userID)
}

const lockedUserID = "0f8b5a3e-6c1d-4f2a-9e7b-3d2c1b0a9f8e"

func unlockRequest(t *testing.T, id string) *http.Request {
	req := handlers.NewTestRequest(t, http.MethodPost, "/admin/users/"+id+"/unlock", nil)
	req = handlers.WithAuthContext(req, "admin-1", "admin@example.com")
	return handlers.WithChiRouteContext(req, map[string]string{"id": id})
}

func TestUnlockUser_Success(t *testing.T) {
	var actor, target string
	svc := &mockAdminService{
		UnlockUserFunc: func(ctx context.Context, actorID, userID string) error {
			actor, target = actorID, userID
			return nil
		},
	}
	h := handlers.NewAdminHandler(svc)

	w := httptest.NewRecorder()
	h.UnlockUser(w, unlockRequest(t, lockedUserID))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "admin-1", actor)
	assert.Equal(t, lockedUserID, target)
}

func TestUnlockUser_InvalidID(t *testing.T) {
	called := false
	svc := &mockAdminService{
		UnlockUserFunc: func(ctx context.Context, actorID, userID string) error {
			called = true
			return nil
		},
	}
	h := handlers.NewAdminHandler(svc)

	w := httptest.NewRecorder()
	h.UnlockUser(w, unlockRequest(t, "not-a-uuid"))

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	assert.False(t, called)
}

func TestUnlockUser_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown user", models.ErrNotFound, http.StatusNotFound, "not_found"},
		{"store down", models.ErrStoreUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAdminService{
				UnlockUserFunc: func(ctx context.Context, actorID, userID string) error { return tt.err },
			}
			h := handlers.NewAdminHandler(svc)

			w := httptest.NewRecorder()
			h.UnlockUser(w, unlockRequest(t, lockedUserID))

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestUnlockUser_NoSession(t *testing.T) {
	h := handlers.NewAdminHandler(&mockAdminService{})
	req := handlers.WithChiRouteContext(httptest.NewRequest(http.MethodPost, "/admin/users/x/unlock", nil),
		map[string]string{"id": lockedUserID})

	w := httptest.NewRecorder()
	h.UnlockUser(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
