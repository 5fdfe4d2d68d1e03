// Package memory is an in-process row store with the same contracts as the
// Postgres repositories. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
)

type revokedToken struct {
	userID    string
	tokenType string
	expiresAt time.Time
	reason    string
}

// Store keeps every table behind one mutex, so multi-row operations such as
// RotatePassword are atomic.
type Store struct {
	mu sync.RWMutex

	now func() time.Time

	users          map[string]*models.User // by id
	attempts       []*models.LoginAttempt
	lockouts       map[string]*models.LockoutState // by normalized email
	lockoutEvents  []*models.LockoutEvent
	questions      map[string]*models.SecurityQuestionSet
	history        map[string][]*models.PasswordHistoryEntry // by user id, oldest first
	accessFailures []*models.AccessFailure
	inputFailures  []*models.InputFailure
	revoked        map[string]revokedToken
}

func NewStore() *Store {
	return &Store{
		now:       func() time.Time { return time.Now().UTC() },
		users:     make(map[string]*models.User),
		lockouts:  make(map[string]*models.LockoutState),
		questions: make(map[string]*models.SecurityQuestionSet),
		history:   make(map[string][]*models.PasswordHistoryEntry),
		revoked:   make(map[string]revokedToken),
	}
}

// SetClock overrides the time source used for generated timestamps
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyLockout(l *models.LockoutState) *models.LockoutState {
	c := *l
	if l.LockedUntil != nil {
		t := *l.LockedUntil
		c.LockedUntil = &t
	}
	if l.LockReason != nil {
		r := *l.LockReason
		c.LockReason = &r
	}
	if l.UserID != nil {
		id := *l.UserID
		c.UserID = &id
	}
	return &c
}

func page[T any](items []T, opts models.ListOptions) []T {
	opts = opts.Normalized()
	if opts.Offset >= len(items) {
		return []T{}
	}
	end := opts.Offset + opts.Limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-opts.Offset)
	copy(out, items[opts.Offset:end])
	return out
}

// newestFirst walks an append-ordered slice backwards, keeping matches
func newestFirst[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if keep(items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

func sortByTimeDesc[T any](items []T, at func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool { return at(items[i]).After(at(items[j])) })
}

// HealthCheck always succeeds; the store lives in process memory.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}
