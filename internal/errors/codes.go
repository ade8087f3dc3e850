// Package errors provides structured error handling for the indexer.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (input files, index directory)
//   - 3XX: Store and external tool errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryStore indicates tracker database and external tool errors.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal ends the current indexing run.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the operation; the run may continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeDSNInvalid     = "ERR_103_DSN_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeRecordMalformed = "ERR_203_RECORD_MALFORMED"
	ErrCodeCorruptIndex    = "ERR_204_CORRUPT_INDEX"
	ErrCodeIndexLocked     = "ERR_205_INDEX_LOCKED"

	// Store and tool errors (300-399)
	ErrCodeStoreUnreachable = "ERR_301_STORE_UNREACHABLE"
	ErrCodeStoreFailed      = "ERR_302_STORE_FAILED"
	ErrCodeToolFailed       = "ERR_303_TOOL_FAILED"
	ErrCodeToolTimeout      = "ERR_304_TOOL_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidFieldSpec = "ERR_402_INVALID_FIELDSPEC"
	ErrCodeInvalidQuery     = "ERR_403_INVALID_QUERY"
	ErrCodeRecordIDMissing  = "ERR_404_RECORD_ID_MISSING"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeIndexFailed  = "ERR_502_INDEX_FAILED"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "ERR_301_..." -> '3'
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryStore
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreUnreachable, ErrCodeStoreFailed, ErrCodeCorruptIndex, ErrCodeDSNInvalid:
		return SeverityFatal
	case ErrCodeToolFailed, ErrCodeToolTimeout, ErrCodeRecordMalformed, ErrCodeRecordIDMissing:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreUnreachable, ErrCodeToolTimeout, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
