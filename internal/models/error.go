package models

import (
	"errors"

	pkgauth "github.com/BradenHooton/pitwall/pkg/auth"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Sign-in errors. Never shown to the client verbatim.
	ErrLockedOut          = errors.New("account is temporarily locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStoreUnavailable   = errors.New("backing store unavailable")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")

	// Step-up verification errors
	ErrNotConfigured        = errors.New("security questions are not configured")
	ErrVerificationFailed   = errors.New("security question verification failed")
	ErrQuestionsNotDistinct = errors.New("security questions must be different")
	ErrUnknownQuestion      = errors.New("security question is not in the catalog")
	ErrAnswerTooShort       = errors.New("security answers must be at least 3 characters long")

	// Password rotation errors
	ErrPasswordTooShort = pkgauth.ErrPasswordTooShort
	ErrPasswordTooLong  = pkgauth.ErrPasswordTooLong
	ErrWeakComplexity   = pkgauth.ErrWeakComplexity
	ErrPasswordReused   = errors.New("password was used recently, choose a different one")
	ErrTooSoon          = errors.New("password was changed less than 24 hours ago")

	// CAS conflict on a versioned row; callers retry.
	ErrVersionConflict = errors.New("version conflict")
)
