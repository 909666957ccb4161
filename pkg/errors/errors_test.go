package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrConflict,
		ErrLoad, ErrSave, ErrStoreUnavailable,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("disk full")
	appErr := &AppError{Code: "SAVE_FAILED", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "SAVE_FAILED")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "disk full")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "key not found"}
	assert.Equal(t, "NOT_FOUND: key not found", appErr.Error())
}

func TestAppError_Unwrap_Nil(t *testing.T) {
	appErr := &AppError{Code: "TEST", Message: "test"}
	assert.Nil(t, appErr.Unwrap())
}

// --- Constructor functions ---

func TestNotFound(t *testing.T) {
	err := NotFound("snapshot", "@cart")
	require.NotNil(t, err)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Contains(t, err.Message, "@cart")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("id is required")
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestConflict(t *testing.T) {
	err := Conflict("already initialized")
	assert.Equal(t, "CONFLICT", err.Code)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestUnavailable(t *testing.T) {
	err := Unavailable("breaker open")
	assert.Equal(t, "STORE_UNAVAILABLE", err.Code)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestLoadError_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := LoadError("@cart", cause)

	assert.Equal(t, "LOAD_FAILED", err.Code)
	assert.True(t, errors.Is(err, ErrLoad))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "@cart")
}

func TestSaveError_KeepsCauseAndVersion(t *testing.T) {
	cause := ErrStoreUnavailable
	err := SaveError("@cart", 7, cause)

	assert.Equal(t, "SAVE_FAILED", err.Code)
	assert.True(t, errors.Is(err, ErrSave))
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Contains(t, err.Message, "version 7")
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "get snapshot")
	assert.Equal(t, "get snapshot: resource not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "CONFLICT", Code(fmt.Errorf("init: %w", Conflict("twice"))))
	assert.Equal(t, "", Code(errors.New("plain")))
	assert.Equal(t, "", Code(nil))
}
