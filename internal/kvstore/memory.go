package kvstore

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Store. Values are copied on the way in and out.
type Memory struct {
	mu        sync.Mutex
	data      map[string][]byte
	sets      int
	beforeGet func(ctx context.Context, key string) error
	beforeSet func(ctx context.Context, key string, value []byte) error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// BeforeGet installs a hook run before every Get, outside the store lock.
// A non-nil error aborts the call. Used to simulate a flaky backend.
func (m *Memory) BeforeGet(fn func(ctx context.Context, key string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeGet = fn
}

// BeforeSet installs a hook run before every Set, outside the store lock, so it
// may block to reorder concurrent writes. A non-nil error aborts the write.
func (m *Memory) BeforeSet(fn func(ctx context.Context, key string, value []byte) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeSet = fn
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	hook := m.beforeGet
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, key); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, NotFound(key)
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	hook := m.beforeSet
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, key, value); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = slices.Clone(value)
	m.sets++
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Raw returns the stored bytes for key without running hooks.
func (m *Memory) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return slices.Clone(v), ok
}

// Put seeds key directly, bypassing hooks and the write counter.
func (m *Memory) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
}

// SetCount returns how many Set calls reached the map.
func (m *Memory) SetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
