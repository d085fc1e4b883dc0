// Package apperrors defines the flat error-code catalogue returned by the
// retrieval core. Validation failures are never mapped onto each other, and
// internal conversion failures never become conflict.
package apperrors

import "fmt"

// Code is one of a small closed set of string error codes.
type Code string

const (
	InvalidParameter Code = "invalid_parameter"
	InvalidPath      Code = "invalid_path"
	OutOfScope       Code = "out_of_scope"
	NeedsNarrowScope Code = "needs_narrow_scope"
	NotFound         Code = "not_found"
	Forbidden        Code = "forbidden"
	InvalidScope     Code = "invalid_scope"
	Conflict         Code = "conflict"
)

// Error is the concrete error type carried on the core's responses.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is supports errors.Is(err, apperrors.New(apperrors.InvalidParameter, ""))
// style matching by comparing codes, not pointer identity or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds an Error with no details.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an Error with details attached.
func Newf(code Code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// NotFoundManual and NotFoundTrace disambiguate the two not_found causes via
// details.reason.
func NotFoundManual(manualID string) *Error {
	return Newf(NotFound, "manual not found", map[string]any{
		"reason":    "unknown_manual",
		"manual_id": manualID,
	})
}

func NotFoundTrace(traceID string) *Error {
	return Newf(NotFound, "trace not found", map[string]any{
		"reason":   "expired_or_missing_trace",
		"trace_id": traceID,
	})
}
