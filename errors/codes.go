package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors are fatal and raised at construction time.
const (
	// ErrCodeConfiguration indicates invalid or incomplete workspace configuration.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeInvalidInput indicates an invalid argument.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Scope errors
const (
	// ErrCodeNoModality indicates an operation needs a bound modality.
	ErrCodeNoModality ErrorCode = "NO_MODALITY"
	// ErrCodeNotUnit indicates an operation needs a fully bound (task, modality) scope.
	ErrCodeNotUnit ErrorCode = "NOT_UNIT"
	// ErrCodeNotFound indicates a task, modality, step or record was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Execution errors
const (
	// ErrCodeScriptFailed indicates a user script returned an error or panicked.
	ErrCodeScriptFailed ErrorCode = "SCRIPT_FAILED"
	// ErrCodeIO indicates a filesystem error (log file, output directories).
	ErrCodeIO ErrorCode = "IO_ERROR"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// IsRetryableCode reports whether errors with code may succeed when the
// operation is repeated. Only filesystem errors qualify.
func IsRetryableCode(code ErrorCode) bool {
	return code == ErrCodeIO
}
