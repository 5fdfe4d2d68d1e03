package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Argon2id parameters for security answers (OWASP minimum profile)
const (
	argonTime    uint32 = 2
	argonMemory  uint32 = 19 * 1024
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16

	MinAnswerLen = 3
)

// ErrMalformedHash is returned when a stored answer hash cannot be decoded
var ErrMalformedHash = errors.New("malformed answer hash")

// NormalizeAnswer trims, NFKC-normalizes and case-folds a free-text answer
// so verification ignores case and surrounding whitespace.
func NormalizeAnswer(answer string) string {
	s := strings.TrimSpace(answer)
	s = norm.NFKC.String(s)
	return cases.Fold().String(s)
}

// AnswerLongEnough reports whether the normalized answer meets the minimum length
func AnswerLongEnough(answer string) bool {
	return utf8.RuneCountInString(NormalizeAnswer(answer)) >= MinAnswerLen
}

// HashAnswer normalizes the answer and derives a salted argon2id hash,
// encoded in the PHC string format.
func HashAnswer(answer string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(NormalizeAnswer(answer)), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// CompareAnswer recomputes the hash of the normalized answer with the stored
// salt and parameters and compares in constant time.
func CompareAnswer(encoded, answer string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(NormalizeAnswer(answer)), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
