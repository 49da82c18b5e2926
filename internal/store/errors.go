package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a unique constraint
	ErrConflict = errors.New("conflict")
	// ErrProtected is returned when a row cannot be removed or changed
	// because other rows depend on it
	ErrProtected = errors.New("protected")
)

// ValidationError collects field level messages
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns a ValidationError with a single message
func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add appends a message for field
func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = map[string][]string{}
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

// Empty reports whether no message was collected
func (v *ValidationError) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

// Err returns v as an error, or nil when empty
func (v *ValidationError) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.Fields[k], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError is ErrConflict carrying the offending field
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, ErrConflict.Error())
}

// Cause lets errors.Cause unwrap to ErrConflict
func (e *ConflictError) Cause() error { return ErrConflict }

// Unwrap lets errors.Is match ErrConflict
func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict builds a ConflictError for field
func Conflict(field string) error {
	return &ConflictError{Field: field}
}

// Protected wraps ErrProtected with a client facing message
func Protected(msg string) error {
	return errors.Wrap(ErrProtected, msg)
}

// ProtectedMessage extracts the message given to Protected
func ProtectedMessage(err error) string {
	msg := err.Error()
	suffix := ": " + ErrProtected.Error()
	if strings.HasSuffix(msg, suffix) {
		return strings.TrimSuffix(msg, suffix)
	}
	return msg
}

// ReferencedMessage is reported when a delete is blocked by references
const ReferencedMessage = "Cannot remove this object because other objects depend on it."
