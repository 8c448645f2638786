// Package errors provides domain-specific errors for the viberater data layer.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrNotFound             = errors.New("record not found")
	ErrStoreClosed          = errors.New("local store closed")
	ErrRequiresConnectivity = errors.New("operation requires connectivity")
	ErrUnknownResource      = errors.New("unknown resource type")
	ErrUnknownMethod        = errors.New("unknown operation method")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	// CodeConnectivity marks failures caused by network unavailability.
	// These are recovered locally (cache fallback, queuing) and retried.
	CodeConnectivity ErrorCode = "CONNECTIVITY"
	// CodeValidation marks application-level rejections (4xx). Never retried.
	CodeValidation ErrorCode = "VALIDATION"
	// CodeMalformed marks unparseable server responses, distinct from
	// application errors so callers can show a generic server-error message.
	CodeMalformed ErrorCode = "MALFORMED_RESPONSE"
	// CodeReconciliation marks queued operations that failed on replay.
	CodeReconciliation ErrorCode = "RECONCILIATION"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeStorage        ErrorCode = "STORAGE"
	CodeConfiguration  ErrorCode = "CONFIG"
)

// DataError wraps errors with a code and message for handling and reporting.
type DataError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *DataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for use with errors.Is and errors.As.
func (e *DataError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DataError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *DataError {
	return &DataError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the ErrorCode from err's chain. Errors that carry no code
// are treated as connectivity failures, the retryable default: transport
// errors from net/http arrive uncoded.
func CodeOf(err error) ErrorCode {
	var de *DataError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeConnectivity
}

// IsRetryable reports whether a failed replay of err should stay queued.
// Validation and malformed-response failures are terminal: replaying a
// request the server already rejected would loop forever.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeMalformed, CodeNotFound:
		return false
	}
	return true
}

// Is reports whether err matches target using errors.Is semantics.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
