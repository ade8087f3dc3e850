package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// IndexError is the structured error type for the indexer.
// It carries enough context for logging, CLI output, and the decision
// between aborting a run and dropping a single record.
type IndexError struct {
	// Code is the unique error code (e.g., "ERR_301_STORE_UNREACHABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Store, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs
	// (record id, field spec, offending value).
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is matches another IndexError by code.
func (e *IndexError) Is(target error) bool {
	if t, ok := target.(*IndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *IndexError) WithDetail(key, value string) *IndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the operator.
func (e *IndexError) WithSuggestion(suggestion string) *IndexError {
	e.Suggestion = suggestion
	return e
}

// New creates an IndexError. Category, severity, and retryable flag are
// derived from the code.
func New(code string, message string, cause error) *IndexError {
	return &IndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IndexError from an existing error.
func Wrap(code string, err error) *IndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *IndexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error. A cause denying access gets
// ErrCodeFilePermission, anything else ErrCodeFileNotFound.
func IOError(message string, cause error) *IndexError {
	if errors.Is(cause, fs.ErrPermission) {
		return New(ErrCodeFilePermission, message, cause)
	}
	return New(ErrCodeFileNotFound, message, cause)
}

// StoreError creates a tracker store failure. Store failures end the run.
func StoreError(message string, cause error) *IndexError {
	return New(ErrCodeStoreFailed, message, cause)
}

// ToolError creates an external extraction tool failure.
func ToolError(message string, cause error) *IndexError {
	return New(ErrCodeToolFailed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *IndexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *IndexError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the first IndexError in err's chain.
func as(err error) (*IndexError, bool) {
	var ie *IndexError
	if err == nil || !errors.As(err, &ie) {
		return nil, false
	}
	return ie, true
}

// IsRetryable reports whether err (or an IndexError it wraps) is retryable.
func IsRetryable(err error) bool {
	ie, ok := as(err)
	return ok && ie.Retryable
}

// IsFatal reports whether err (or an IndexError it wraps) has fatal severity.
func IsFatal(err error) bool {
	ie, ok := as(err)
	return ok && ie.Severity == SeverityFatal
}

// GetCode extracts the error code. Returns empty string if err carries none.
func GetCode(err error) string {
	if ie, ok := as(err); ok {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category. Returns empty string if err carries none.
func GetCategory(err error) Category {
	if ie, ok := as(err); ok {
		return ie.Category
	}
	return ""
}
