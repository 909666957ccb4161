package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrLoad             = errors.New("snapshot load failed")
	ErrSave             = errors.New("snapshot save failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AppError represents a structured application error with a stable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a not-found error for the given resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Err:     ErrNotFound,
	}
}

// InvalidInput creates an input validation error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Err:     ErrInvalidInput,
	}
}

// Conflict creates a state conflict error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Err:     ErrConflict,
	}
}

// Unavailable creates an error for a backing store that refuses calls.
func Unavailable(message string) *AppError {
	return &AppError{
		Code:    "STORE_UNAVAILABLE",
		Message: message,
		Err:     ErrStoreUnavailable,
	}
}

// LoadError reports a snapshot that could not be read or decoded. The cause is
// reachable through errors.Is / errors.As alongside ErrLoad.
func LoadError(key string, cause error) *AppError {
	return &AppError{
		Code:    "LOAD_FAILED",
		Message: fmt.Sprintf("load snapshot %q", key),
		Err:     errors.Join(ErrLoad, cause),
	}
}

// SaveError reports a snapshot write that failed after all retries.
func SaveError(key string, version uint64, cause error) *AppError {
	return &AppError{
		Code:    "SAVE_FAILED",
		Message: fmt.Sprintf("save snapshot %q version %d", key, version),
		Err:     errors.Join(ErrSave, cause),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Code returns the AppError code carried by err, or "" if there is none.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
