// Package errors defines the coded failure taxonomy shared by the patient
// and appointment services. Every caller-facing failure is classified so the
// transport layer can map it without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a failure.
type Code string

const (
	// CodeValidation marks malformed input: identifier, postcode, duration,
	// a missing required field, or a reference to a patient that does not
	// exist at creation time.
	CodeValidation Code = "validation"
	// CodeNotFound marks an operation addressed at a record that is absent.
	CodeNotFound Code = "not_found"
	// CodeConflict marks creation of a patient whose identifier already exists.
	CodeConflict Code = "conflict"
	// CodeBusinessRule marks a well-formed request rejected by the
	// appointment state machine.
	CodeBusinessRule Code = "business_rule"
	// CodeConcurrency marks a conditional status update that lost a race
	// with another writer. The sweep skips these; interactive callers see 409.
	CodeConcurrency Code = "concurrency_conflict"
	// CodeInternal marks everything else. Handlers substitute a generic
	// message so storage details never reach the client.
	CodeInternal Code = "internal"
)

// Error is a classified failure. Field is set when the failure concerns a
// single input field.
type Error struct {
	Code    Code
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// New returns a classified error with the given message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf returns a classified error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation returns a field-scoped validation error.
func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

// CodeOf returns err's classification, unwrapping as needed, or the empty
// code when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsValidation(err error) bool          { return CodeOf(err) == CodeValidation }
func IsNotFound(err error) bool            { return CodeOf(err) == CodeNotFound }
func IsConflict(err error) bool            { return CodeOf(err) == CodeConflict }
func IsBusinessRule(err error) bool        { return CodeOf(err) == CodeBusinessRule }
func IsConcurrencyConflict(err error) bool { return CodeOf(err) == CodeConcurrency }

// HTTPStatus maps a classified error to its response status. Business-rule
// failures answer 400 like validation failures; the code field tells them
// apart. Unclassified errors are internal.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation, CodeBusinessRule:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
