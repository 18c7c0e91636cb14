package shared

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness constraint violation at the store.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationError collects every field failure for a single request,
// keyed by field name, so a caller can render all messages at once.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError ready to collect.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a failure for a field. The first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// AsValidationError unwraps err into a ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
