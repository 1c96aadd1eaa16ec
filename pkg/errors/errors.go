package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// Details maps offending request fields to the rule they broke.
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones compare equal to their template.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Rules and timeclock errors.
var (
	ErrRulesNotFound           = New("RULES_NOT_FOUND", http.StatusNotFound, "rules not found for jurisdiction")
	ErrInvalidTransition       = New("INVALID_TRANSITION", http.StatusConflict, "action not allowed in current timeclock state")
	ErrAcknowledgementRequired = New("ACKNOWLEDGEMENT_REQUIRED", http.StatusConflict, "auto clock-out must be acknowledged before clocking in")
	ErrLocationUnavailable     = New("LOCATION_UNAVAILABLE", http.StatusUnprocessableEntity, "location fix unavailable or too inaccurate")
	ErrOutsideGeofence         = New("OUTSIDE_GEOFENCE", http.StatusForbidden, "location is outside the partner site geofence")
	ErrRetryMismatch           = New("RETRY_MISMATCH", http.StatusConflict, "only the failed action may be retried")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Validation converts a validator failure into ErrValidation, listing each
// offending field under Details keyed by its snake_case name.
func Validation(err error) *Error {
	out := Wrap(err, ErrValidation.Code, ErrValidation.Status, ErrValidation.Message)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if err != nil {
			out.Message = err.Error()
		}
		return out
	}
	out.Details = make(map[string]string, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := snakeCase(fe.Field())
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out.Details[name] = rule
		names = append(names, name)
	}
	out.Message = "invalid " + strings.Join(names, ", ")
	return out
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if err.Details != nil {
		clone.Details = make(map[string]string, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	if message != "" {
		clone.Message = message
	}
	return &clone
}
