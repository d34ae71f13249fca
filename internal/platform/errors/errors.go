// Package errors is the structured error type shared by every newsroom
// package. Import it as perr
package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error for callers, logs and the HTTP API.
// Values are part of the API wire format; append only
type ErrorCode uint16

const (
	// ErrorCodeUnknown is an unclassified error
	ErrorCodeUnknown ErrorCode = iota
	// ErrorCodePanic is a recovered panic
	ErrorCodePanic
	// ErrorCodeUnavailable is a transient dependency failure
	ErrorCodeUnavailable
	// ErrorCodeConflict is a state conflict other than a unique violation
	ErrorCodeConflict
	// ErrorCodeInvalidArgument is a bad parameter
	ErrorCodeInvalidArgument
	// ErrorCodeValidation is invalid input data
	ErrorCodeValidation
	// ErrorCodeJSON is an undecodable request body
	ErrorCodeJSON
	// ErrorCodeNotFound is a missing row or resource
	ErrorCodeNotFound
	// ErrorCodeDuplicateKey is a unique constraint violation
	ErrorCodeDuplicateKey
	// ErrorCodeDB is any other database failure
	ErrorCodeDB
	// ErrorCodeConfiguration is a collector or method misconfiguration
	ErrorCodeConfiguration
	// ErrorCodeSource is a whole-source failure: unreachable feed, bad status, unparsable document
	ErrorCodeSource
	// ErrorCodeExtraction is a failure confined to one item of a source
	ErrorCodeExtraction
	// ErrorCodeTimeout is an exceeded guardrail deadline
	ErrorCodeTimeout
)

var codeNames = map[ErrorCode]string{
	ErrorCodeUnknown:         "unknown",
	ErrorCodePanic:           "panic",
	ErrorCodeUnavailable:     "unavailable",
	ErrorCodeConflict:        "conflict",
	ErrorCodeInvalidArgument: "invalid_argument",
	ErrorCodeValidation:      "validation",
	ErrorCodeJSON:            "json",
	ErrorCodeNotFound:        "not_found",
	ErrorCodeDuplicateKey:    "duplicate_key",
	ErrorCodeDB:              "db",
	ErrorCodeConfiguration:   "configuration",
	ErrorCodeSource:          "source",
	ErrorCodeExtraction:      "extraction",
	ErrorCodeTimeout:         "timeout",
}

// String returns the snake_case name used in logs
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// HTTPStatusCode maps a code to an HTTP status
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeInvalidArgument, ErrorCodeConfiguration:
		return http.StatusUnprocessableEntity
	case ErrorCodeDuplicateKey, ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeValidation, ErrorCodeJSON:
		return http.StatusBadRequest
	case ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeSource, ErrorCodeTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrNotFound is the shared not-found sentinel
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error carries a machine code, a developer message, an optional input field,
// an optional operation label and the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Wire is the JSON form returned by the API
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.msg
	if e.op != "" {
		msg = e.op + ": " + msg
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", msg, e.orig)
	}
	return msg
}

// Unwrap returns the cause
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending input field
func (e *Error) Field() string { return e.field }

// Op returns the operation label
func (e *Error) Op() string { return e.op }

// Message returns the message without the op prefix or cause
func (e *Error) Message() string { return e.msg }

// ToWire converts e for the API
func (e *Error) ToWire() Wire { return Wire{Code: e.code, Message: e.msg, Field: e.field} }

// WireFrom converts any error for the API; nil gives the zero Wire
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
}

// Root returns the innermost cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf returns the outermost *Error code, or Unknown. Context deadlines
// that were never wrapped report Timeout
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	if stderrs.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err carries code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus maps any error to an HTTP status
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// As returns the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is is errors.Is re-exported so callers need only perr
func Is(err, target error) bool { return stderrs.Is(err, target) }

// WithField returns a copy of err with field set. Foreign errors are returned unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp returns a copy of err with op set. Foreign errors are returned unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// New returns an *Error
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns an *Error with a formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns an *Error around orig
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns an *Error around orig with a formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps err only when it is non-nil
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// NotFoundf returns a not-found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// InvalidArgf returns an invalid-argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Validationf returns a validation error
func Validationf(format string, a ...any) error { return Newf(ErrorCodeValidation, format, a...) }

// Configf returns a configuration error
func Configf(format string, a ...any) error { return Newf(ErrorCodeConfiguration, format, a...) }

// Sourcef returns a whole-source error
func Sourcef(format string, a ...any) error { return Newf(ErrorCodeSource, format, a...) }

// Extractionf returns a per-item error
func Extractionf(format string, a ...any) error { return Newf(ErrorCodeExtraction, format, a...) }

// Unavailablef returns an unavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// PanicErrf returns a panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// JSONErrf returns a JSON decoding error
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// Internalf returns an unclassified error
func Internalf(format string, a ...any) error { return Newf(ErrorCodeUnknown, format, a...) }

// HTTP returns status and wire payload together
func HTTP(err error) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{}
	}
	return HTTPStatus(err), WireFrom(err)
}

// Retryable reports whether a retry may succeed: transient database errors,
// unavailable dependencies, source failures and timeouts
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrorCodeUnavailable, ErrorCodeSource, ErrorCodeTimeout:
		return true
	case ErrorCodeConfiguration, ErrorCodeValidation, ErrorCodeInvalidArgument, ErrorCodeNotFound:
		return false
	}
	return IsRetryable(err)
}

// Permanent reports failures no retry can fix: bad configuration, invalid
// input and missing records
func Permanent(err error) bool {
	switch CodeOf(err) {
	case ErrorCodeConfiguration, ErrorCodeValidation, ErrorCodeInvalidArgument, ErrorCodeNotFound, ErrorCodeJSON:
		return err != nil
	}
	return false
}
