// Package errors provides structured error handling for semdesk.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (files, storage directory, locks)
//   - 3XX: Store and query errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk and lock errors.
	CategoryIO Category = "IO"
	// CategoryStore indicates triple store or full-text index errors.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// IO errors (200-299)
	ErrCodeFileNotFound       = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission     = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull           = "ERR_203_DISK_FULL"
	ErrCodeFileTooLarge       = "ERR_204_FILE_TOO_LARGE"
	ErrCodeCorruptIndex       = "ERR_205_CORRUPT_INDEX"
	ErrCodeStorageDir         = "ERR_206_STORAGE_DIR"
	ErrCodeRepositoryLocked   = "ERR_207_REPOSITORY_LOCKED"
	ErrCodeIndexUnavailable   = "ERR_208_INDEX_UNAVAILABLE"
	ErrCodeDaemonNotReachable = "ERR_209_DAEMON_NOT_REACHABLE"

	// Store errors (300-399)
	ErrCodeStoreUnavailable = "ERR_301_STORE_UNAVAILABLE"
	ErrCodeStatementFailed  = "ERR_302_STATEMENT_FAILED"
	ErrCodeStoreBusy        = "ERR_303_STORE_BUSY"
	ErrCodeQueryFailed      = "ERR_304_QUERY_FAILED"
	ErrCodeMaintenance      = "ERR_305_MAINTENANCE_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidURI   = "ERR_402_INVALID_URI"
	ErrCodeInvalidQuery = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty   = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidPath  = "ERR_406_INVALID_PATH"
	ErrCodeNotIndexed   = "ERR_407_NOT_INDEXED"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeIndexFailed     = "ERR_505_INDEX_FAILED"
	ErrCodeWritebackFailed = "ERR_506_WRITEBACK_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	numStr := code[4:7]

	switch numStr[0] {
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
	case ErrCodeCorruptIndex, ErrCodeDiskFull:
		return SeverityFatal
	case ErrCodeIndexUnavailable:
		// The process keeps running with storage marked unavailable.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRepositoryLocked, ErrCodeStoreBusy, ErrCodeDaemonNotReachable:
		return true
	default:
		return false
	}
}
