package ledis

import (
	"context"
	"fmt"

	"github.com/siddontang/ledisdb/ledis"

	"github.com/utafrali/cartkeeper/internal/kvstore"
)

// Store implements kvstore.Store on an embedded LedisDB database. It is the
// on-device option: data lives in a local directory and needs no server.
type Store struct {
	conn *ledis.Ledis
	db   *ledis.DB
}

// NewStore wraps an opened LedisDB. conn may be nil when the caller keeps
// ownership of the instance.
func NewStore(conn *ledis.Ledis, db *ledis.DB) *Store {
	return &Store{conn: conn, db: db}
}

// Get retrieves the raw value for key. LedisDB calls are local and do not
// observe ctx.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	value, err := s.db.Get([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("ledis get %s: %w", key, err)
	}
	// LedisDB reports a missing key as a nil value, not an error.
	if value == nil {
		return nil, kvstore.NotFound(key)
	}
	return value, nil
}

// Set writes value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.db.Set([]byte(key), value); err != nil {
		return fmt.Errorf("ledis set %s: %w", key, err)
	}
	return nil
}

// Close closes the LedisDB instance if this store owns it.
func (s *Store) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
