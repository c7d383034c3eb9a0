package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure. The set is closed: callers switch on
// kinds instead of matching error strings.
type ErrorKind string

const (
	// ErrInvalidAttribute indicates an attribute name outside the allowed definitions.
	ErrInvalidAttribute ErrorKind = "invalid_attribute"
	// ErrDuplicateAttribute indicates a repeated attribute name within one set.
	ErrDuplicateAttribute ErrorKind = "duplicate_attribute"
	// ErrDuplicateIdentifier indicates an insert that collided with an existing identifier.
	ErrDuplicateIdentifier ErrorKind = "duplicate_identifier"
	// ErrReferenceNotFound indicates a cross-resource reference that does not resolve.
	ErrReferenceNotFound ErrorKind = "reference_not_found"
	// ErrReadOnlyViolation indicates a mutation attempt on a read-only resource.
	ErrReadOnlyViolation ErrorKind = "read_only_violation"
	// ErrUnsupportedFormat indicates an upload whose declared format is not recognized.
	ErrUnsupportedFormat ErrorKind = "unsupported_format"
	// ErrIngestFailed indicates a mid-process ingestion failure after rollback.
	ErrIngestFailed ErrorKind = "ingest_failed"
	// ErrEmptyUpload indicates an upload from which no data files were retained.
	ErrEmptyUpload ErrorKind = "empty_upload"
	// ErrInvalidTransition indicates an illegal model-run state change.
	ErrInvalidTransition ErrorKind = "invalid_transition"
	// ErrNotFound indicates a lookup for an absent resource.
	ErrNotFound ErrorKind = "not_found"
)

// Error is the structured error value returned across package boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// NewError constructs a kinded error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError constructs a kinded error carrying an underlying cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the ErrorKind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
