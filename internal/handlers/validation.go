package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/BradenHooton/pitwall/internal/models"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 64 << 10

// ValidationError is the first failing field of a request
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name so failures classify the same way
	// the client submitted them.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest validates a request struct using go-playground/validator.
// A failure is returned as *ValidationError.
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return &ValidationError{
			Field:   ve[0].Field(),
			Message: formatValidationError(ve[0]),
		}
	}
	return fmt.Errorf("validation failed: %w", err)
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "nefield":
		return fmt.Sprintf("must differ from %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// InputFailureRecorder receives rejected submissions for the audit views
type InputFailureRecorder interface {
	RecordInputFailure(ctx context.Context, f models.InputFailure)
}

// emailCarrier is implemented by request bodies that name an account, so a
// rejected submission can be attributed to it.
type emailCarrier interface {
	submittedEmail() string
}

// requestGuard decodes and validates request bodies and records rejected
// input. Embedded by the handlers of the auth flows.
type requestGuard struct {
	recorder InputFailureRecorder
	ipConfig *pkghttp.IPConfig
}

func (g requestGuard) clientMeta(r *http.Request) pkghttp.ClientMeta {
	return pkghttp.ExtractClientMeta(r, g.ipConfig)
}

// decode reads a JSON body into dst and validates it. On failure the 400 is
// written, the failure recorded, and false returned.
func (g requestGuard) decode(w http.ResponseWriter, r *http.Request, flow string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		g.record(r, flow, "", models.InputFailureValidation, "body", "malformed request body")
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}

	if err := ValidateRequest(dst); err != nil {
		email := ""
		if c, ok := dst.(emailCarrier); ok {
			email = c.submittedEmail()
		}

		field, message := "", err.Error()
		var ve *ValidationError
		if errors.As(err, &ve) {
			field, message = ve.Field, ve.Message
		}
		g.record(r, flow, email, models.ClassifyInputField(field), field, message)
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

func (g requestGuard) record(r *http.Request, flow, email, failureType, field, message string) {
	if g.recorder == nil {
		return
	}

	meta := g.clientMeta(r)
	f := models.InputFailure{
		FailureType: failureType,
		Flow:        flow,
		Field:       field,
		Message:     message,
		IPAddress:   meta.IP,
		UserAgent:   meta.UserAgent,
	}
	if email = models.NormalizeEmail(email); email != "" {
		f.Email = &email
	}
	g.recorder.RecordInputFailure(r.Context(), f)
}

// policyViolation maps a password or security-question rule to its
// client-facing code. ok is false for errors that are not rule violations.
func policyViolation(err error) (code, message, failureType string, ok bool) {
	switch {
	case errors.Is(err, models.ErrPasswordTooShort):
		return "password_too_short", err.Error(), models.InputFailurePassword, true
	case errors.Is(err, models.ErrPasswordTooLong):
		return "password_too_long", err.Error(), models.InputFailurePassword, true
	case errors.Is(err, models.ErrWeakComplexity):
		return "password_too_weak", err.Error(), models.InputFailurePassword, true
	case errors.Is(err, models.ErrPasswordReused):
		return "password_reused", err.Error(), models.InputFailurePassword, true
	case errors.Is(err, models.ErrTooSoon):
		return "password_changed_too_recently", err.Error(), "", true
	case errors.Is(err, models.ErrQuestionsNotDistinct):
		return "questions_not_distinct", err.Error(), models.InputFailureValidation, true
	case errors.Is(err, models.ErrUnknownQuestion):
		return "unknown_question", err.Error(), models.InputFailureValidation, true
	case errors.Is(err, models.ErrAnswerTooShort):
		return "answer_too_short", err.Error(), models.InputFailureValidation, true
	case errors.Is(err, models.ErrVerificationFailed):
		return "verification_failed", "Security answers did not match", "", true
	case errors.Is(err, models.ErrNotConfigured):
		return "security_questions_not_configured", err.Error(), "", true
	}
	return "", "", "", false
}

// writePolicyError renders a rule violation as 422, recording input-class
// violations. It returns false when err is not a rule violation.
func (g requestGuard) writePolicyError(w http.ResponseWriter, r *http.Request, flow, email string, err error) bool {
	code, message, failureType, ok := policyViolation(err)
	if !ok {
		return false
	}
	if failureType != "" {
		g.record(r, flow, email, failureType, "", message)
	}
	pkghttp.WritePolicyViolation(w, code, message)
	return true
}
