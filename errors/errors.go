package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError carries a machine-readable code with the message shown to the
// user. Details hold structured context such as the failing field or path.
type AppError struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the wrapped error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds one detail.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// New returns an error with code; Retryable follows the code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Retryable: IsRetryableCode(code)}
}

func newf(code ErrorCode, details map[string]any, cause error, format string, args ...any) *AppError {
	e := New(code, fmt.Sprintf(format, args...))
	e.Details = details
	e.Cause = cause
	return e
}

// Configuration reports an invalid workspace configuration.
func Configuration(format string, args ...any) *AppError {
	return newf(ErrCodeConfiguration, nil, nil, format, args...)
}

// InvalidInput reports a bad argument such as a malformed record id.
func InvalidInput(field, reason string) *AppError {
	return newf(ErrCodeInvalidInput, map[string]any{"field": field}, nil, "invalid %s: %s", field, reason)
}

// NoModality reports an operation called on a scope without a modality.
func NoModality(operation string) *AppError {
	return newf(ErrCodeNoModality, map[string]any{"operation": operation}, nil, "%s requires a modality", operation)
}

// NotUnit reports an operation called on a scope that is not a single
// task and modality.
func NotUnit(operation string) *AppError {
	return newf(ErrCodeNotUnit, map[string]any{"operation": operation}, nil, "%s requires a task and a modality", operation)
}

// NotFound reports an unknown task, modality, step or record.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return newf(ErrCodeNotFound, details, nil, "%s %q not found", resource, id)
}

// ScriptFailed wraps the error returned, or the panic raised, by the script
// of the step labelled label.
func ScriptFailed(label string, cause error) *AppError {
	return newf(ErrCodeScriptFailed, map[string]any{"step_label": label}, cause, "script %s failed", label)
}

// IO reports a failed filesystem operation on path. It is retryable.
func IO(operation, path string, cause error) *AppError {
	return newf(ErrCodeIO, map[string]any{"path": path}, cause, "%s %s", operation, path)
}

// Internal wraps an unexpected failure.
func Internal(cause error) *AppError {
	return newf(ErrCodeInternal, nil, cause, "unexpected error")
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err is (or wraps) an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether err is (or wraps) a retryable AppError.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}
