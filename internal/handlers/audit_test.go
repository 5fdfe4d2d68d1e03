package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/pitwall/internal/handlers"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLockoutSource struct {
	attempts []*models.LoginAttempt
	locked   []*models.LockoutState
	events   []*models.LockoutEvent
	err      error
	gotOpts  models.ListOptions
}

func (s *stubLockoutSource) ListAttempts(_ context.Context, opts models.ListOptions) ([]*models.LoginAttempt, error) {
	s.gotOpts = opts
	return s.attempts, s.err
}

func (s *stubLockoutSource) ListLocked(_ context.Context, opts models.ListOptions) ([]*models.LockoutState, error) {
	s.gotOpts = opts
	return s.locked, s.err
}

func (s *stubLockoutSource) ListLockoutEvents(_ context.Context, opts models.ListOptions) ([]*models.LockoutEvent, error) {
	s.gotOpts = opts
	return s.events, s.err
}

type stubFailureSource struct {
	access []*models.AccessFailure
	inputs []*models.InputFailure
}

func (s *stubFailureSource) ListAccessFailures(_ context.Context, _ models.ListOptions) ([]*models.AccessFailure, error) {
	return s.access, nil
}

func (s *stubFailureSource) ListInputFailures(_ context.Context, _ models.ListOptions) ([]*models.InputFailure, error) {
	return s.inputs, nil
}

func TestAuditLoginAttempts_PassesPaging(t *testing.T) {
	reason := models.FailureReasonInvalidPassword
	src := &stubLockoutSource{attempts: []*models.LoginAttempt{
		{ID: "a1", Email: "driver@example.com", FailureReason: &reason, AttemptedAt: time.Now()},
	}}
	h := handlers.NewAuditHandler(src, &stubFailureSource{})

	w := httptest.NewRecorder()
	h.LoginAttempts(w, httptest.NewRequest(http.MethodGet, "/audit/login-attempts?email=driver@example.com&limit=10&offset=20", nil))

	var resp handlers.ListResponse[models.LoginAttempt]
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "a1", resp.Items[0].ID)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, 20, resp.Offset)
	assert.Equal(t, models.ListOptions{Email: "driver@example.com", Limit: 10, Offset: 20}, src.gotOpts)
}

func TestAuditLoginAttempts_ClampsPaging(t *testing.T) {
	src := &stubLockoutSource{}
	h := handlers.NewAuditHandler(src, &stubFailureSource{})

	w := httptest.NewRecorder()
	h.LoginAttempts(w, httptest.NewRequest(http.MethodGet, "/audit/login-attempts?limit=5000&offset=-3", nil))

	var resp handlers.ListResponse[models.LoginAttempt]
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, models.MaxListLimit, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
	assert.NotNil(t, resp.Items)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestAuditLockoutHistory(t *testing.T) {
	lapsed := time.Now().Add(-time.Hour)
	src := &stubLockoutSource{events: []*models.LockoutEvent{
		{ID: "e1", Email: "driver@example.com", LockedUntil: lapsed, LockoutCount: 1, Reason: models.LockReasonTooManyFailures},
	}}
	h := handlers.NewAuditHandler(src, &stubFailureSource{})

	w := httptest.NewRecorder()
	h.LockoutHistory(w, httptest.NewRequest(http.MethodGet, "/audit/lockout-history?email=driver@example.com", nil))

	var resp handlers.ListResponse[models.LockoutEvent]
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "e1", resp.Items[0].ID)
	assert.True(t, lapsed.Equal(resp.Items[0].LockedUntil))
	assert.Equal(t, "driver@example.com", src.gotOpts.Email)
}

func TestAuditLockouts(t *testing.T) {
	until := time.Now().Add(15 * time.Minute)
	src := &stubLockoutSource{locked: []*models.LockoutState{
		{Email: "driver@example.com", FailedCount: 5, LockoutCount: 1, LockedUntil: &until, Version: 7},
	}}
	h := handlers.NewAuditHandler(src, &stubFailureSource{})

	w := httptest.NewRecorder()
	h.Lockouts(w, httptest.NewRequest(http.MethodGet, "/audit/lockouts", nil))

	var resp handlers.ListResponse[models.LockoutState]
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 5, resp.Items[0].FailedCount)
	assert.Equal(t, models.DefaultListLimit, resp.Limit)
	assert.NotContains(t, w.Body.String(), "version")
}

func TestAuditLockouts_StoreDown(t *testing.T) {
	h := handlers.NewAuditHandler(&stubLockoutSource{err: models.ErrStoreUnavailable}, &stubFailureSource{})

	w := httptest.NewRecorder()
	h.Lockouts(w, httptest.NewRequest(http.MethodGet, "/audit/lockouts", nil))

	handlers.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
}

func TestAuditFailureViews(t *testing.T) {
	role := string(models.RoleDriver)
	email := "driver@example.com"
	src := &stubFailureSource{
		access: []*models.AccessFailure{{ID: "f1", Role: &role, Resource: "/audit/lockouts", Action: http.MethodGet, Reason: "missing capability audit.read"}},
		inputs: []*models.InputFailure{{ID: "i1", Email: &email, FailureType: models.InputFailureEmail, Flow: models.FlowSignIn}},
	}
	h := handlers.NewAuditHandler(&stubLockoutSource{}, src)

	w := httptest.NewRecorder()
	h.AccessFailures(w, httptest.NewRequest(http.MethodGet, "/audit/access-failures", nil))
	var access handlers.ListResponse[models.AccessFailure]
	handlers.AssertJSONResponse(t, w, http.StatusOK, &access)
	require.Len(t, access.Items, 1)
	assert.Equal(t, "/audit/lockouts", access.Items[0].Resource)

	w = httptest.NewRecorder()
	h.InputFailures(w, httptest.NewRequest(http.MethodGet, "/audit/input-failures", nil))
	var inputs handlers.ListResponse[models.InputFailure]
	handlers.AssertJSONResponse(t, w, http.StatusOK, &inputs)
	require.Len(t, inputs.Items, 1)
	assert.Equal(t, models.InputFailureEmail, inputs.Items[0].FailureType)
}
