package errors

import (
	stderrors "errors"
	"fmt"
)

// SemError is the structured error type for semdesk.
// It provides rich context for error handling, logging, and user presentation.
type SemError struct {
	// Code is the unique error code (e.g., "ERR_207_REPOSITORY_LOCKED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Store, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SemError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SemError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SemError.
func (e *SemError) Is(target error) bool {
	if t, ok := target.(*SemError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SemError) WithDetail(key, value string) *SemError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SemError) WithSuggestion(suggestion string) *SemError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SemError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SemError {
	return &SemError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SemError from an existing error.
// The error's message becomes the SemError message.
func Wrap(code string, err error) *SemError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SemError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *SemError {
	return New(ErrCodeFileNotFound, message, cause)
}

// StoreError creates a triple store or full-text index error.
func StoreError(message string, cause error) *SemError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SemError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SemError {
	return New(ErrCodeInternal, message, cause)
}

// GetCode extracts the error code from the first SemError in err's chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var se *SemError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}
