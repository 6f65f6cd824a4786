package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for loreguard errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
)

// Scanner error codes
const (
	SCANNER_COMPILE_FAILED ErrorCode = "SCANNER_COMPILE_FAILED"
	SCANNER_UNKNOWN_TYPE   ErrorCode = "SCANNER_UNKNOWN_TYPE"
)

// Redaction error codes
const (
	REDACTION_BLOCKED      ErrorCode = "REDACTION_BLOCKED"
	REVIEW_STORE_MISSING   ErrorCode = "REVIEW_STORE_MISSING"
	REVIEW_ENTRY_NOT_FOUND ErrorCode = "REVIEW_ENTRY_NOT_FOUND"
)

// Guardrail error codes
const (
	RULE_NOT_FOUND         ErrorCode = "RULE_NOT_FOUND"
	STATE_NOT_FOUND        ErrorCode = "STATE_NOT_FOUND"
	CONDITION_UNKNOWN      ErrorCode = "CONDITION_UNKNOWN"
	CONDITION_CONFIG_BAD   ErrorCode = "CONDITION_CONFIG_BAD"
	ACTION_FAILED          ErrorCode = "ACTION_FAILED"
	AGENT_NOT_FOUND        ErrorCode = "AGENT_NOT_FOUND"
	EVALUATION_UNAVAILABLE ErrorCode = "EVALUATION_UNAVAILABLE"
)

// LoreguardError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and retryability hints.
type LoreguardError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *LoreguardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *LoreguardError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is against sentinel
// LoreguardError values.
func (e *LoreguardError) Is(target error) bool {
	var lgErr *LoreguardError
	if errors.As(target, &lgErr) {
		return e.Code == lgErr.Code
	}
	return false
}

// NewError creates a new non-retryable LoreguardError.
func NewError(code ErrorCode, message string) *LoreguardError {
	return &LoreguardError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable LoreguardError. Use for
// transient failures that may succeed on retry.
func NewRetryableError(code ErrorCode, message string) *LoreguardError {
	return &LoreguardError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a non-retryable LoreguardError wrapping an existing
// error. The cause is reachable via Unwrap().
func WrapError(code ErrorCode, message string, cause error) *LoreguardError {
	return &LoreguardError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsNotFound reports whether err carries one of the not-found codes.
// Stores return these instead of raw sql.ErrNoRows so callers never
// depend on the persistence layer directly.
func IsNotFound(err error) bool {
	var lgErr *LoreguardError
	if !errors.As(err, &lgErr) {
		return false
	}
	switch lgErr.Code {
	case RULE_NOT_FOUND, STATE_NOT_FOUND, AGENT_NOT_FOUND, REVIEW_ENTRY_NOT_FOUND:
		return true
	default:
		return false
	}
}
