// Package arborerr defines arbor's error taxonomy: a small, closed set of
// four error kinds that callers can branch on with errors.Is/As.
package arborerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an *Error.
type Kind string

const (
	// StorageError wraps failures from the underlying SQL-capable store:
	// connection failures, schema corruption, disk I/O, transaction
	// failures.
	StorageError Kind = "storage"

	// SearchError wraps failures during query execution that are not the
	// caller's fault: malformed internally-built SQL, unsupported
	// storage-capability combinations, aggregation failures.
	SearchError Kind = "search"

	// InvalidArgumentError wraps caller mistakes: malformed filters, bad
	// pagination parameters, unknown sort fields, invalid geo radii.
	InvalidArgumentError Kind = "invalid_argument"

	// NotFoundError wraps lookups that found nothing: unknown index,
	// unknown document route.
	NotFoundError Kind = "not_found"
)

// Error is arbor's error type. It carries a Kind for coarse-grained
// handling, a human-readable Message, optional structured Details, and an
// optional wrapped Cause for errors.Unwrap/errors.Is chains.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind and Message, so
// errors.Is(err, arborerr.ErrIndexNotFound) works for the sentinels below
// without conflating distinct NotFoundError conditions.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind && e.Message == other.Message
	}
	return false
}

// WithDetail returns a copy of e with key/value merged into Details.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New constructs an *Error of kind with message, no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of kind with message, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Storagef builds a StorageError with a formatted message.
func Storagef(cause error, format string, args ...any) *Error {
	return Wrap(StorageError, fmt.Sprintf(format, args...), cause)
}

// Searchf builds a SearchError with a formatted message.
func Searchf(cause error, format string, args ...any) *Error {
	return Wrap(SearchError, fmt.Sprintf(format, args...), cause)
}

// InvalidArgumentf builds an InvalidArgumentError with a formatted message
// and no cause (the caller's input is the problem, not a wrapped failure).
func InvalidArgumentf(format string, args ...any) *Error {
	return New(InvalidArgumentError, fmt.Sprintf(format, args...))
}

// NotFoundf builds a NotFoundError with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFoundError, fmt.Sprintf(format, args...))
}

// IsKind reports whether err is an *Error of the given Kind, unwrapping as
// needed.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for common not-found conditions, matched via errors.Is.
var (
	ErrIndexNotFound    = New(NotFoundError, "index not found")
	ErrDocumentNotFound = New(NotFoundError, "document not found")
	ErrIndexClosed      = New(StorageError, "index is closed")
	ErrInvalidOption    = New(InvalidArgumentError, "invalid option")
)
