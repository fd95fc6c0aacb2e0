package engine

import (
	"errors"
	"fmt"
)

// Error represents a failure detected while planning or executing an
// operation.
//
// Engine errors include:
//   - Invalid argument: validation failure, unknown include field, wrong
//     nesting, arity violation, nested update of an unrelated object
//   - Not unique: a uniqueness query returned more than one row
//   - Record not found: missing pre-image in update/delete, or the re-fetch
//     after create matched nothing
//   - Unsupported: dangerous raw SQL, or a value of unhandled type in
//     server-side where compilation
//
// Adapter failures are propagated verbatim, wrapped for context; they roll
// back the transaction like every other error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Table identifies the affected table, when known.
	Table string

	// Operation identifies the operation kind for not-found errors
	// ("Create", "Update", "Delete").
	Operation string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates the input failed validation or names
	// an unsupported nested form.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeNotUnique indicates a uniqueness query returned >1 row.
	ErrCodeNotUnique ErrorCode = "NOT_UNIQUE"

	// ErrCodeRecordNotFound indicates a required record was absent.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// ErrCodeUnsupported indicates a raw statement or value the engine
	// refuses to handle.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s (operation=%s)", e.Code, e.Message, e.Operation)
	}
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidArgument returns true if the error is a validation failure.
// Uses errors.As to handle wrapped errors.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

// IsNotUnique returns true if the error is a uniqueness violation.
func IsNotUnique(err error) bool {
	return hasCode(err, ErrCodeNotUnique)
}

// IsNotFound returns true if the error is a missing-record failure.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeRecordNotFound)
}

// IsUnsupported returns true if the error is an unsupported-input failure.
func IsUnsupported(err error) bool {
	return hasCode(err, ErrCodeUnsupported)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NewInvalidArgument builds an invalid-argument error for callers outside
// the planners, e.g. the public sync surface.
func NewInvalidArgument(format string, args ...any) *Error {
	return invalidArgument(format, args...)
}

func invalidArgument(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func notUnique(table string) *Error {
	return &Error{
		Code:    ErrCodeNotUnique,
		Message: "query returned more than one result",
		Table:   table,
	}
}

func recordNotFound(operation string) *Error {
	return &Error{
		Code:      ErrCodeRecordNotFound,
		Message:   "record not found",
		Operation: operation,
	}
}

func unsupported(format string, args ...any) *Error {
	return &Error{Code: ErrCodeUnsupported, Message: fmt.Sprintf(format, args...)}
}
