package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/internal/repositories/memory"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-bytes-long"

type revocationFunc func(ctx context.Context, jti string) (bool, error)

func (f revocationFunc) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return f(ctx, jti)
}

type userRepoFunc func(ctx context.Context, id string) (*models.User, error)

func (f userRepoFunc) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f(ctx, id)
}

type capturedFailures struct {
	mu       sync.Mutex
	failures []models.AccessFailure
}

func (c *capturedFailures) RecordAccessFailure(_ context.Context, f models.AccessFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
}

func newTestManager(t *testing.T) (*TokenManager, *memory.Store, *models.User) {
	t.Helper()
	store := memory.NewStore()
	user, err := store.Create(context.Background(), &models.User{
		Email:        "engineer@pitwall.example",
		PasswordHash: "$2a$12$placeholder",
		Name:         "Race Engineer",
		Role:         models.RoleRaceEngineer,
	})
	require.NoError(t, err)

	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	tm.SetUserRepo(store)
	return tm, store, user
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r)
		if claims == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthMiddleware_AcceptsAccessToken(t *testing.T) {
	tm, _, user := newTestManager(t)
	token, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	AuthMiddleware(tm)(okHandler()).ServeHTTP(rec, authedRequest(token))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tm, _, user := newTestManager(t)
	refresh, err := tm.GenerateRefreshToken(user)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "refresh token", header: "Bearer " + refresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tm)(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthMiddleware_RotatedTokenKeyInvalidatesSessions(t *testing.T) {
	tm, store, user := newTestManager(t)
	token, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)

	require.NoError(t, store.RotateTokenKey(context.Background(), user.ID))

	rec := httptest.NewRecorder()
	AuthMiddleware(tm)(okHandler()).ServeHTTP(rec, authedRequest(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_KeyStoreDownIsUnavailable(t *testing.T) {
	tm, _, user := newTestManager(t)
	token, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)

	tm.SetUserRepo(userRepoFunc(func(ctx context.Context, id string) (*models.User, error) {
		return nil, errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	AuthMiddleware(tm)(okHandler()).ServeHTTP(rec, authedRequest(token))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthMiddlewareWithRevocation(t *testing.T) {
	tm, _, user := newTestManager(t)
	token, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)

	tests := []struct {
		name       string
		checker    revocationFunc
		failClosed bool
		wantStatus int
	}{
		{
			name:       "not revoked",
			checker:    func(ctx context.Context, jti string) (bool, error) { return false, nil },
			failClosed: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "revoked",
			checker:    func(ctx context.Context, jti string) (bool, error) { return true, nil },
			failClosed: true,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "lookup error fails closed",
			checker:    func(ctx context.Context, jti string) (bool, error) { return false, errors.New("timeout") },
			failClosed: true,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "lookup error fails open when configured",
			checker:    func(ctx context.Context, jti string) (bool, error) { return false, errors.New("timeout") },
			failClosed: false,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := AuthMiddlewareWithRevocation(tm, tt.checker, RevocationConfig{FailClosed: tt.failClosed})
			rec := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rec, authedRequest(token))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func guardedRouter(tm *TokenManager, guard *CapabilityGuard, capability models.Capability) http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(tm))
		r.With(guard.Require(capability)).Get("/audit/lockouts", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func TestCapabilityGuard_AllowsGrantedCapability(t *testing.T) {
	tm, store, user := newTestManager(t)
	recorder := &capturedFailures{}
	guard := NewCapabilityGuard(store, recorder, nil)

	token, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/audit/lockouts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guardedRouter(tm, guard, models.CapPitStopsManage).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, recorder.failures)
}

func TestCapabilityGuard_DeniesAndRecords(t *testing.T) {
	tm, store, user := newTestManager(t)
	recorder := &capturedFailures{}
	guard := NewCapabilityGuard(store, recorder, &pkghttp.IPConfig{})

	token, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/audit/lockouts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "pit-tablet/1.0")
	req.RemoteAddr = "198.51.100.20:5000"
	rec := httptest.NewRecorder()
	guardedRouter(tm, guard, models.CapAuditRead).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.Len(t, recorder.failures, 1)
	f := recorder.failures[0]
	assert.Equal(t, "/audit/lockouts", f.Resource)
	assert.Equal(t, http.MethodGet, f.Action)
	assert.Equal(t, "missing capability", f.Reason)
	assert.Equal(t, "198.51.100.20", f.IPAddress)
	assert.Equal(t, "pit-tablet/1.0", f.UserAgent)
	require.NotNil(t, f.UserID)
	assert.Equal(t, user.ID, *f.UserID)
	require.NotNil(t, f.Role)
	assert.Equal(t, string(models.RoleRaceEngineer), *f.Role)
	assert.Equal(t, string(models.CapAuditRead), f.Metadata["capability"])
}

func TestCapabilityGuard_UsesCurrentRoleNotTokenRole(t *testing.T) {
	tm, _, user := newTestManager(t)
	token, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)

	// The token still says race_engineer; the record now says driver.
	demoted := *user
	demoted.Role = models.RoleDriver
	users := userRepoFunc(func(ctx context.Context, id string) (*models.User, error) {
		return &demoted, nil
	})
	recorder := &capturedFailures{}
	guard := NewCapabilityGuard(users, recorder, nil)

	req := httptest.NewRequest(http.MethodGet, "/audit/lockouts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guardedRouter(tm, guard, models.CapPitStopsManage).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, recorder.failures, 1)
}

func TestCapabilityGuard_NoSession(t *testing.T) {
	recorder := &capturedFailures{}
	guard := NewCapabilityGuard(userRepoFunc(func(ctx context.Context, id string) (*models.User, error) {
		t.Fatal("user lookup without a session")
		return nil, nil
	}), recorder, nil)

	rec := httptest.NewRecorder()
	guard.Require(models.CapTeamView)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/team", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, recorder.failures, 1)
	assert.Equal(t, "/team", recorder.failures[0].Resource)
	assert.Nil(t, recorder.failures[0].UserID)
}

func TestCapabilityGuard_StoreErrorIsUnavailable(t *testing.T) {
	recorder := &capturedFailures{}
	guard := NewCapabilityGuard(userRepoFunc(func(ctx context.Context, id string) (*models.User, error) {
		return nil, errors.New("connection reset")
	}), recorder, nil)

	req := httptest.NewRequest(http.MethodGet, "/team", nil)
	ctx := context.WithValue(req.Context(), UserContextKey, &models.TokenClaims{UserID: "user-1"})
	rec := httptest.NewRecorder()
	guard.Require(models.CapTeamView)(okHandler()).ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, recorder.failures)
}
