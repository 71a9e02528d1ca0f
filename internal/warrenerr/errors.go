// Package warrenerr defines the structured error taxonomy for the warren
// object layer. Every error carries a Code so callers can branch on the
// failure kind without string matching.
package warrenerr

import (
	"errors"
	"fmt"
)

// Code categorizes object-layer errors.
type Code string

const (
	// CodeValidation covers empty or oversized keys, oversized serialized
	// values, over-limit batches, and unrepresentable value types. Always
	// raised before any mutation is applied.
	CodeValidation Code = "VALIDATION"

	// CodeNotResolved indicates a deferred identity was used (string form,
	// equality, binding) before its lazy resolution completed.
	CodeNotResolved Code = "NOT_RESOLVED"

	// CodeRequiresAsync indicates a synchronous namespace was asked to
	// resolve and bind by name in one step, which only the async namespace
	// supports.
	CodeRequiresAsync Code = "REQUIRES_ASYNC_RESOLUTION"

	// CodeMalformedIdentity indicates an identity string is not 64 lowercase
	// hex characters.
	CodeMalformedIdentity Code = "MALFORMED_IDENTITY"

	// CodeForeignNamespace indicates a well-formed identity was minted under
	// a different namespace.
	CodeForeignNamespace Code = "FOREIGN_NAMESPACE"

	// CodeAlarmInPast indicates an alarm was scheduled at or before now.
	CodeAlarmInPast Code = "ALARM_IN_PAST"

	// CodeRemoteTimeout indicates a forwarded request exceeded the
	// namespace's configured timeout. Distinct from transport errors so
	// callers can tell "object unreachable" from "object rejected".
	CodeRemoteTimeout Code = "REMOTE_CALL_TIMEOUT"

	// CodeTxnFailure indicates the closure passed to a transaction failed;
	// surfaced only after the rollback completed.
	CodeTxnFailure Code = "TRANSACTION_FAILURE"
)

// Error is the structured error type for the object layer.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Namespace identifies the affected namespace, when known.
	Namespace string

	// Key identifies the affected storage key (for validation errors).
	Key string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Namespace != "" && e.Key != "":
		return fmt.Sprintf("%s: %s (namespace=%s, key=%q)", e.Code, e.Message, e.Namespace, e.Key)
	case e.Namespace != "":
		return fmt.Sprintf("%s: %s (namespace=%s)", e.Code, e.Message, e.Namespace)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%q)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that wraps an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err (or anything it wraps) is an Error with code.
func Is(err error, code Code) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Code == code
	}
	return false
}

// CodeOf returns the code of err, or "" if err is not an Error.
func CodeOf(err error) Code {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}
