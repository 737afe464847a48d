// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError carries per-field messages for a rejected payload.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string, cause error) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}, Err: cause}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes both ErrValidation and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// PublicError pairs a sentinel with a message that is safe to send to clients.
type PublicError struct {
	Message string
	Err     error
}

// NewPublicError wraps err with a client-facing message.
func NewPublicError(message string, err error) *PublicError {
	return &PublicError{Message: message, Err: err}
}

func (e *PublicError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *PublicError) Unwrap() error { return e.Err }

// StatusFor returns the HTTP status an error maps to.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to JSON message responses. The error chain
// itself never reaches the body; only a PublicError message or the status text.
func RespondError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		JSON(w, http.StatusUnprocessableEntity, ErrorBody{Message: "The given data was invalid.", Errors: verr.Fields})
		return
	}
	status := StatusFor(err)
	switch status {
	case http.StatusForbidden:
		Message(w, status, MessageForbidden)
		return
	case http.StatusUnauthorized:
		Message(w, status, MessageUnauthenticated)
		return
	case http.StatusInternalServerError:
		Message(w, status, http.StatusText(status))
		return
	}
	var perr *PublicError
	if errors.As(err, &perr) && perr.Message != "" {
		Message(w, status, perr.Message)
		return
	}
	Message(w, status, http.StatusText(status))
}
