package cartstore

import (
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/utafrali/cartkeeper/pkg/errors"
	"github.com/utafrali/cartkeeper/pkg/validator"

	"github.com/utafrali/cartkeeper/internal/domain"
)

// Phase is the lifecycle stage of a Store.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Mutation operation names, used in commits and logs.
const (
	OpAdd       = "add"
	OpIncrement = "increment"
	OpDecrement = "decrement"
)

// Commit describes one applied, state-changing mutation. State is the value the
// mutation produced; it is immutable and is the only thing a save may persist.
type Commit struct {
	Op        string
	ProductID string
	State     domain.CartState
	Version   uint64
}

// CommitFunc receives commits in strictly increasing Version order. It runs while
// the store lock is held and must not block or call back into the Store.
type CommitFunc func(Commit)

type mutation struct {
	op    string
	id    string
	apply func(domain.CartState) (domain.CartState, bool)
}

// Store owns the in-memory cart and is its only writer.
type Store struct {
	mu       sync.Mutex
	state    domain.CartState
	phase    Phase
	version  uint64
	pending  []mutation
	onCommit CommitFunc
	logger   *slog.Logger
}

// New creates an empty, uninitialized store. onCommit may be nil.
func New(onCommit CommitFunc, logger *slog.Logger) *Store {
	return &Store{
		onCommit: onCommit,
		logger:   logger,
	}
}

// BeginLoading marks that a snapshot load is in progress. Only meaningful from
// PhaseUninitialized; later calls are ignored.
func (s *Store) BeginLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseUninitialized {
		s.phase = PhaseLoading
	}
}

// Initialize replaces the state wholesale with loaded and moves the store to
// PhaseReady. Mutations queued before this call are then replayed, in call
// order, on top of loaded; each replayed change is committed like a live one.
func (s *Store) Initialize(loaded domain.CartState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseReady {
		return apperrors.Conflict("cart store already initialized")
	}

	s.state = loaded
	s.phase = PhaseReady

	pending := s.pending
	s.pending = nil
	for _, m := range pending {
		s.applyLocked(m)
	}

	s.logger.Info("cart store initialized",
		slog.Int("lines", s.state.Len()),
		slog.Int("replayed", len(pending)),
		slog.Uint64("version", s.version),
	)

	return nil
}

// AddItem adds one unit of p. An existing line for p.ID gains a unit; otherwise
// a line with quantity 1 is appended. Invalid products are rejected with an
// invalid-input error and never queued.
func (s *Store) AddItem(p domain.Product) (domain.CartState, error) {
	if err := validator.Validate(p); err != nil {
		return domain.CartState{}, apperrors.InvalidInput(err.Error())
	}

	return s.submit(mutation{
		op: OpAdd,
		id: p.ID,
		apply: func(st domain.CartState) (domain.CartState, bool) {
			return st.WithAdded(p), true
		},
	}), nil
}

// IncrementItem adds one unit to the line for id. An absent id is a no-op, not an error.
func (s *Store) IncrementItem(id string) domain.CartState {
	return s.submit(mutation{
		op: OpIncrement,
		id: id,
		apply: func(st domain.CartState) (domain.CartState, bool) {
			return st.WithIncrement(id)
		},
	})
}

// DecrementItem removes one unit from the line for id, dropping the line at zero.
// An absent id is a no-op, not an error.
func (s *Store) DecrementItem(id string) domain.CartState {
	return s.submit(mutation{
		op: OpDecrement,
		id: id,
		apply: func(st domain.CartState) (domain.CartState, bool) {
			return st.WithDecrement(id)
		},
	})
}

// List returns the current state.
func (s *Store) List() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Phase returns the current lifecycle phase.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Version returns the version of the last commit, 0 if none.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// submit applies m now when ready, or queues it. Either way the returned state
// is the store's state once the call has been accepted.
func (s *Store) submit(m mutation) domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseReady {
		s.pending = append(s.pending, m)
		s.logger.Debug("mutation queued until cart is loaded",
			slog.String("op", m.op),
			slog.String("product_id", m.id),
			slog.String("phase", s.phase.String()),
			slog.Int("queued", len(s.pending)),
		)
		return s.state
	}

	return s.applyLocked(m)
}

func (s *Store) applyLocked(m mutation) domain.CartState {
	next, changed := m.apply(s.state)
	if !changed {
		s.logger.Debug("mutation ignored, product not in cart",
			slog.String("op", m.op),
			slog.String("product_id", m.id),
		)
		return s.state
	}

	s.version++
	s.state = next

	if s.onCommit != nil {
		s.onCommit(Commit{
			Op:        m.op,
			ProductID: m.id,
			State:     next,
			Version:   s.version,
		})
	}

	return next
}
