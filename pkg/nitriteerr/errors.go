package nitriteerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for callers that need to branch on category
// rather than match a message string.
type Kind string

const (
	KindInvalidOperation Kind = "invalid_operation"
	KindNotIdentifiable  Kind = "not_identifiable"
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation_error"
	KindFilter           Kind = "filter_error"
	KindInvalidFieldName Kind = "invalid_field_name"
	KindInvalidDataType  Kind = "invalid_data_type"
	KindCorruption       Kind = "corruption"
	KindClosed           Kind = "closed"
	KindIO               Kind = "io_error"
	KindSecurity         Kind = "security_error"
	KindObjectMapping    Kind = "object_mapping_error"
)

// Error is the concrete error type returned across the package boundary.
// It carries a Kind, a human message, and an optional wrapped Cause.
type Error struct {
	Kind    Kind
	Message string
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

// Is allows errors.Is(err, nitriteerr.New(k, "")) style comparisons on Kind
// alone, ignoring Message and Cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func InvalidOperation(message string) *Error { return New(KindInvalidOperation, message) }
func NotIdentifiable(message string) *Error  { return New(KindNotIdentifiable, message) }
func NotFound(message string) *Error         { return New(KindNotFound, message) }
func Validation(message string) *Error       { return New(KindValidation, message) }
func Filter(message string) *Error           { return New(KindFilter, message) }
func InvalidFieldName(message string) *Error { return New(KindInvalidFieldName, message) }
func InvalidDataType(message string) *Error  { return New(KindInvalidDataType, message) }
func Corruption(message string) *Error       { return New(KindCorruption, message) }
func Closed(message string) *Error           { return New(KindClosed, message) }
func IO(message string, cause error) *Error  { return Wrap(KindIO, message, cause) }
func Security(message string) *Error         { return New(KindSecurity, message) }
func ObjectMapping(message string, cause error) *Error {
	return Wrap(KindObjectMapping, message, cause)
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
