package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error code
type ErrorCode string

const (
	// Validation errors
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Transport errors (network-level: bad host, timeout, TLS)
	CodeTransport        ErrorCode = "TRANSPORT_ERROR"
	CodeTransportTimeout ErrorCode = "TRANSPORT_TIMEOUT"
	CodeHostUnreachable  ErrorCode = "HOST_UNREACHABLE"

	// Upstream errors (non-2xx HTTP from a provider)
	CodeUpstream      ErrorCode = "UPSTREAM_ERROR"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeRateLimited   ErrorCode = "RATE_LIMITED"
	CodeUpstreamEmpty ErrorCode = "UPSTREAM_EMPTY_RESPONSE"

	// Decode errors (malformed or unexpected payload shape)
	CodeDecode        ErrorCode = "DECODE_ERROR"
	CodeMalformedData ErrorCode = "MALFORMED_DATA"

	// Sync errors (aggregate failure of a pipeline run)
	CodeSync        ErrorCode = "SYNC_ERROR"
	CodeSyncRunning ErrorCode = "SYNC_ALREADY_RUNNING"

	// Database errors
	CodeDatabase            ErrorCode = "DATABASE_ERROR"
	CodeDatabaseConnection  ErrorCode = "DATABASE_CONNECTION_ERROR"
	CodeDatabaseTransaction ErrorCode = "DATABASE_TRANSACTION_ERROR"
	CodeNotFound            ErrorCode = "NOT_FOUND"

	// Config errors
	CodeConfig        ErrorCode = "CONFIG_ERROR"
	CodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// Internal errors
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeUnknown  ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// TransportError creates a network-level transport error
func TransportError(message string, err error) *AppError {
	return Wrap(err, CodeTransport, message)
}

// UpstreamError creates a provider error carrying the HTTP status code
func UpstreamError(statusCode int, message string) *AppError {
	return New(CodeUpstream, message).WithContext("status_code", statusCode)
}

// DecodeError creates a payload decode error
func DecodeError(message string, err error) *AppError {
	return Wrap(err, CodeDecode, message)
}

// SyncError creates an aggregate sync failure carrying the last underlying cause
func SyncError(message string, err error) *AppError {
	return Wrap(err, CodeSync, message)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, CodeDatabase, message)
}

// ConfigError creates a configuration error
func ConfigError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, CodeConfig, message)
	}
	return New(CodeConfig, message)
}

// NotFoundError creates a not found error
func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// StatusCode extracts the upstream HTTP status attached to an error, or 0
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Context != nil {
		if code, ok := appErr.Context["status_code"].(int); ok {
			return code
		}
	}
	return 0
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeTransportTimeout, CodeRateLimited, CodeUnauthorized,
			CodeUpstreamEmpty, CodeDatabaseConnection:
			return true
		case CodeUpstream:
			return retryableStatus(StatusCode(err))
		}
	}
	return false
}

// retryableStatus reports provider statuses worth another attempt with the next
// user agent: auth walls that depend on the client string, gateway errors, and
// provider rate-limit codes (512, 520).
func retryableStatus(code int) bool {
	switch code {
	case 401, 403, 429, 502, 504, 512, 520:
		return true
	}
	return false
}

// IsOverload reports whether an error indicates the upstream is shedding load,
// in which case bulk fetches should fall back to the per-category strategy.
func IsOverload(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Code == CodeRateLimited {
			return true
		}
		switch StatusCode(err) {
		case 429, 503, 512, 520:
			return true
		}
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
