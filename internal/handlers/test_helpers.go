package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BradenHooton/pitwall/internal/auth"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/internal/services"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds access-token claims to the request context
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Type:   models.TokenTypeAccess,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignUpFunc  func(ctx context.Context, in services.SignUpInput) (*models.SignInResult, bool, error)
	SignInFunc  func(ctx context.Context, in services.SignInInput) (*models.SignInResult, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (*models.SignInResult, error)
	SignOutFunc func(ctx context.Context, claims *models.TokenClaims) error
	MeFunc      func(ctx context.Context, userID string) (*models.User, error)
}

func (m *MockAuthService) SignUp(ctx context.Context, in services.SignUpInput) (*models.SignInResult, bool, error) {
	if m.SignUpFunc == nil {
		return nil, false, models.ErrConflict
	}
	return m.SignUpFunc(ctx, in)
}

func (m *MockAuthService) SignIn(ctx context.Context, in services.SignInInput) (*models.SignInResult, error) {
	if m.SignInFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.SignInFunc(ctx, in)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.SignInResult, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *MockAuthService) SignOut(ctx context.Context, claims *models.TokenClaims) error {
	if m.SignOutFunc == nil {
		return nil
	}
	return m.SignOutFunc(ctx, claims)
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	if m.MeFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.MeFunc(ctx, userID)
}

// MockSecurityQuestionService implements SecurityQuestionServiceInterface for testing
type MockSecurityQuestionService struct {
	SetupFunc     func(ctx context.Context, userID, q1, a1, q2, a2 string) error
	ChallengeFunc func(ctx context.Context, userID string) (*models.SecurityChallenge, error)
	VerifyFunc    func(ctx context.Context, userID, a1, a2 string) error
}

func (m *MockSecurityQuestionService) Catalog() []string {
	return append([]string(nil), models.SecurityQuestionCatalog...)
}

func (m *MockSecurityQuestionService) Setup(ctx context.Context, userID, q1, a1, q2, a2 string) error {
	if m.SetupFunc == nil {
		return nil
	}
	return m.SetupFunc(ctx, userID, q1, a1, q2, a2)
}

func (m *MockSecurityQuestionService) Challenge(ctx context.Context, userID string) (*models.SecurityChallenge, error) {
	if m.ChallengeFunc == nil {
		return nil, models.ErrNotConfigured
	}
	return m.ChallengeFunc(ctx, userID)
}

func (m *MockSecurityQuestionService) Verify(ctx context.Context, userID, a1, a2 string) error {
	if m.VerifyFunc == nil {
		return models.ErrVerificationFailed
	}
	return m.VerifyFunc(ctx, userID, a1, a2)
}

// MockPasswordService implements PasswordServiceInterface for testing
type MockPasswordService struct {
	StatusByIDFunc     func(ctx context.Context, userID string) (models.PasswordStatus, error)
	ChangePasswordFunc func(ctx context.Context, in services.ChangePasswordInput) error
	ResetChallengeFunc func(ctx context.Context, email string) (*models.SecurityChallenge, error)
	ResetPasswordFunc  func(ctx context.Context, in services.ResetPasswordInput) error
}

func (m *MockPasswordService) StatusByID(ctx context.Context, userID string) (models.PasswordStatus, error) {
	if m.StatusByIDFunc == nil {
		return models.PasswordStatus{CanChange: true}, nil
	}
	return m.StatusByIDFunc(ctx, userID)
}

func (m *MockPasswordService) ChangePassword(ctx context.Context, in services.ChangePasswordInput) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, in)
}

func (m *MockPasswordService) ResetChallenge(ctx context.Context, email string) (*models.SecurityChallenge, error) {
	if m.ResetChallengeFunc == nil {
		return nil, models.ErrNotConfigured
	}
	return m.ResetChallengeFunc(ctx, email)
}

func (m *MockPasswordService) ResetPassword(ctx context.Context, in services.ResetPasswordInput) error {
	if m.ResetPasswordFunc == nil {
		return nil
	}
	return m.ResetPasswordFunc(ctx, in)
}

// RecordingFailures captures input failures passed to the handlers
type RecordingFailures struct {
	mu     sync.Mutex
	Inputs []models.InputFailure
}

func (r *RecordingFailures) RecordInputFailure(_ context.Context, f models.InputFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Inputs = append(r.Inputs, f)
}

// Last returns the most recent recorded failure
func (r *RecordingFailures) Last() (models.InputFailure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Inputs) == 0 {
		return models.InputFailure{}, false
	}
	return r.Inputs[len(r.Inputs)-1], true
}
