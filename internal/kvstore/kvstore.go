// Package kvstore defines the key-value capability the cart persists through,
// plus backend-agnostic decorators.
package kvstore

import (
	"context"

	apperrors "github.com/utafrali/cartkeeper/pkg/errors"
)

// Store is an opaque persistent key-value service. Each call is atomic on its
// own; nothing is transactional across calls.
type Store interface {
	// Get returns the value stored under key, or an error matching
	// apperrors.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases the backend's resources.
	Close() error
}

// NotFound returns the error Get implementations use for an absent key.
func NotFound(key string) error {
	return apperrors.NotFound("key", key)
}
