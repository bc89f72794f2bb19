package errors

import (
	"fmt"
)

// IngestError is the structured error type for repoingest.
// It carries enough context for logging, aggregation into file results,
// and user presentation.
type IngestError struct {
	// Code is the unique error code (e.g., "ERR_201_PARSE_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, File, Embedding, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with IngestError.
func (e *IngestError) Is(target error) bool {
	if t, ok := target.(*IngestError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *IngestError) WithDetail(key, value string) *IngestError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new IngestError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *IngestError {
	return &IngestError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IngestError from an existing error.
// The error's message becomes the IngestError message.
func Wrap(code string, err error) *IngestError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// PathNotFound creates the fatal root-path error.
func PathNotFound(path string, cause error) *IngestError {
	return New(ErrCodePathNotFound, fmt.Sprintf("root path not found or not a directory: %s", path), cause)
}

// ParseError creates a per-file parse error.
func ParseError(path string, cause error) *IngestError {
	return New(ErrCodeParseFailed, fmt.Sprintf("failed to parse %s", path), cause).
		WithDetail("file", path)
}

// SizeLimitExceeded creates a per-file size ceiling error.
func SizeLimitExceeded(path string, size, limit int64) *IngestError {
	return New(ErrCodeSizeLimit,
		fmt.Sprintf("%s exceeds size limit (%d > %d bytes)", path, size, limit), nil).
		WithDetail("file", path)
}

// EmbeddingError creates a retryable embedding failure.
func EmbeddingError(message string, cause error) *IngestError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// StoreError creates a memory store write failure.
func StoreError(message string, cause error) *IngestError {
	return New(ErrCodeStoreFailed, message, cause)
}

// TimeoutError creates a per-file timeout error.
func TimeoutError(path string, cause error) *IngestError {
	return New(ErrCodeTimeout, fmt.Sprintf("processing %s timed out", path), cause).
		WithDetail("file", path)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *IngestError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an IngestError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*IngestError); ok {
		return ie.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the whole run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*IngestError); ok {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an IngestError.
// Returns empty string if not an IngestError.
func GetCode(err error) string {
	if ie, ok := err.(*IngestError); ok {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category from an IngestError.
// Returns empty string if not an IngestError.
func GetCategory(err error) Category {
	if ie, ok := err.(*IngestError); ok {
		return ie.Category
	}
	return ""
}
