package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	TokenKeyLength = 32 // 256 bits
	MinPasswordLen = 8
	MaxPasswordLen = 64

	// bcrypt only reads the first 72 bytes
	maxPasswordBytes = 72
)

// PasswordSymbols is the punctuation set that satisfies the symbol rule
const PasswordSymbols = `!@#$%^&*(),.?":{}|<>`

// Password policy failures. internal/models re-exports these so services and
// handlers match them with errors.Is.
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 64 characters")
	ErrWeakComplexity   = errors.New("password must contain an uppercase letter, a lowercase letter, a digit and a symbol")
)

// ErrEmptyPassword is returned by HashPassword for an empty input
var ErrEmptyPassword = errors.New("password cannot be empty")

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// PasswordMatches reports whether password hashes to hashedPassword.
// Malformed hashes count as a mismatch.
func PasswordMatches(hashedPassword, password string) bool {
	return ComparePassword(hashedPassword, password) == nil
}

func GenerateTokenKey() (string, error) {
	bytes := make([]byte, TokenKeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// ValidatePassword applies the rotation policy rules in a fixed order and
// reports the first one that fails: length floor, length ceiling, complexity.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLen {
		return ErrPasswordTooShort
	}
	if n > MaxPasswordLen || len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(PasswordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return ErrWeakComplexity
	}
	return nil
}
