package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/pitwall/internal/models"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
)

// LockoutAuditSource serves the attempt ledger, the locked accounts and
// the lock history
type LockoutAuditSource interface {
	ListAttempts(ctx context.Context, opts models.ListOptions) ([]*models.LoginAttempt, error)
	ListLocked(ctx context.Context, opts models.ListOptions) ([]*models.LockoutState, error)
	ListLockoutEvents(ctx context.Context, opts models.ListOptions) ([]*models.LockoutEvent, error)
}

// FailureAuditSource serves the recorded access and input failures
type FailureAuditSource interface {
	ListAccessFailures(ctx context.Context, opts models.ListOptions) ([]*models.AccessFailure, error)
	ListInputFailures(ctx context.Context, opts models.ListOptions) ([]*models.InputFailure, error)
}

// AuditHandler serves the read-only audit views
type AuditHandler struct {
	lockouts LockoutAuditSource
	failures FailureAuditSource
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(lockouts LockoutAuditSource, failures FailureAuditSource) *AuditHandler {
	return &AuditHandler{lockouts: lockouts, failures: failures}
}

// ListResponse is the page envelope of every audit view
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// listOptions reads ?email=&limit=&offset=. Bad numbers fall back to defaults.
func listOptions(r *http.Request) models.ListOptions {
	q := r.URL.Query()
	opts := models.ListOptions{Email: q.Get("email")}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = l
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = o
	}
	return opts.Normalized()
}

func writePage[T any](w http.ResponseWriter, opts models.ListOptions, items []T, err error) {
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	pkghttp.WriteJSON(w, http.StatusOK, ListResponse[T]{Items: items, Limit: opts.Limit, Offset: opts.Offset})
}

// LoginAttempts lists the sign-in ledger, newest first
// @Router /audit/login-attempts [get]
func (h *AuditHandler) LoginAttempts(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	items, err := h.lockouts.ListAttempts(r.Context(), opts)
	writePage(w, opts, items, err)
}

// Lockouts lists accounts whose lock is in force
// @Router /audit/lockouts [get]
func (h *AuditHandler) Lockouts(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	items, err := h.lockouts.ListLocked(r.Context(), opts)
	writePage(w, opts, items, err)
}

// LockoutHistory lists every applied lock newest first, including expired
// and cleared ones
// @Router /audit/lockout-history [get]
func (h *AuditHandler) LockoutHistory(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	items, err := h.lockouts.ListLockoutEvents(r.Context(), opts)
	writePage(w, opts, items, err)
}

// @Router /audit/access-failures [get]
func (h *AuditHandler) AccessFailures(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	items, err := h.failures.ListAccessFailures(r.Context(), opts)
	writePage(w, opts, items, err)
}

// @Router /audit/input-failures [get]
func (h *AuditHandler) InputFailures(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	items, err := h.failures.ListInputFailures(r.Context(), opts)
	writePage(w, opts, items, err)
}
