// Package errors provides structured error handling for repoingest.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Path and configuration errors
//   - 2XX: File and parse errors
//   - 3XX: Embedding backend errors
//   - 4XX: Memory store errors
//   - 5XX: Internal and timeout errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates path and configuration errors.
	CategoryConfig Category = "CONFIG"
	// CategoryFile indicates per-file read and parse errors.
	CategoryFile Category = "FILE"
	// CategoryEmbedding indicates embedding backend errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryStore indicates memory store errors.
	CategoryStore Category = "STORE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the unit failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Path and configuration errors (100-199)
	ErrCodePathNotFound  = "ERR_101_PATH_NOT_FOUND"
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"
	ErrCodeRunLocked     = "ERR_103_RUN_LOCKED"

	// File errors (200-299)
	ErrCodeParseFailed    = "ERR_201_PARSE_FAILED"
	ErrCodeSizeLimit      = "ERR_202_SIZE_LIMIT"
	ErrCodeFileUnreadable = "ERR_203_FILE_UNREADABLE"

	// Embedding errors (300-399)
	ErrCodeEmbeddingFailed    = "ERR_301_EMBEDDING_FAILED"
	ErrCodeBackendUnavailable = "ERR_302_BACKEND_UNAVAILABLE"
	ErrCodeDimensionMismatch  = "ERR_303_DIMENSION_MISMATCH"

	// Store errors (400-499)
	ErrCodeStoreFailed      = "ERR_401_STORE_FAILED"
	ErrCodeStoreUnavailable = "ERR_402_STORE_UNAVAILABLE"

	// Internal errors (500-599)
	ErrCodeTimeout  = "ERR_501_TIMEOUT"
	ErrCodeInternal = "ERR_502_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "201" from "ERR_201_PARSE_FAILED"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryFile
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryStore
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodePathNotFound, ErrCodeConfigInvalid, ErrCodeRunLocked:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingFailed, ErrCodeBackendUnavailable, ErrCodeStoreUnavailable:
		return true
	default:
		return false
	}
}
