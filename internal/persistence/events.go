package persistence

import (
	"fmt"
	"time"
)

// EventKind classifies a persistence warning.
type EventKind string

const (
	// EventLoadFailed: the snapshot could not be parsed; the cart started empty.
	EventLoadFailed EventKind = "load_failed"
	// EventLoadUnavailable: the store could not be read; the cart started empty
	// and saves are held until the overwrite is confirmed.
	EventLoadUnavailable EventKind = "load_unavailable"
	// EventLoadRepaired: the snapshot loaded but some records were dropped.
	EventLoadRepaired EventKind = "load_repaired"
	// EventSaveFailed: a snapshot write gave up after retries. The in-memory cart
	// is intact but may not survive a restart.
	EventSaveFailed EventKind = "save_failed"
)

// Event is a non-fatal persistence warning surfaced to the composition layer.
type Event struct {
	Kind    EventKind
	Key     string
	Version uint64
	Err     error
	At      time.Time
}

func (e Event) String() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s key=%s version=%d: %v", e.Kind, e.Key, e.Version, e.Err)
	}
	return fmt.Sprintf("%s key=%s: %v", e.Kind, e.Key, e.Err)
}
