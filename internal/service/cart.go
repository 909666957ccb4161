package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/cartkeeper/internal/cartstore"
	"github.com/utafrali/cartkeeper/internal/domain"
	"github.com/utafrali/cartkeeper/internal/persistence"
)

// CartService is the handle the view layer holds. It owns the in-memory cart
// and mirrors every committed change to the snapshot store.
type CartService struct {
	store  *cartstore.Store
	bridge *persistence.Bridge
	logger *slog.Logger
}

// NewCartService creates a cart service persisting through bridge. The cart is
// empty and queues mutations until Restore completes.
func NewCartService(bridge *persistence.Bridge, logger *slog.Logger) *CartService {
	s := &CartService{
		bridge: bridge,
		logger: logger,
	}
	s.store = cartstore.New(s.persist, logger)
	return s
}

// persist runs under the store lock, once per commit and in version order.
// SaveAsync encodes before returning, so the write carries exactly this state.
func (s *CartService) persist(c cartstore.Commit) {
	s.bridge.SaveAsync(c.State, c.Version)
}

// Restore loads the saved snapshot and makes the cart ready. Mutations made
// before Restore are replayed on top of the loaded cart.
func (s *CartService) Restore(ctx context.Context) error {
	s.store.BeginLoading()

	loaded := s.bridge.Load(ctx)
	if err := s.store.Initialize(loaded); err != nil {
		return fmt.Errorf("restore cart: %w", err)
	}
	return nil
}

// AddToCart adds one unit of p to the cart.
func (s *CartService) AddToCart(p domain.Product) error {
	if _, err := s.store.AddItem(p); err != nil {
		s.logger.Warn("product rejected",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("add to cart: %w", err)
	}
	return nil
}

// Increment adds one unit to the line for id. Unknown ids are ignored.
func (s *CartService) Increment(id string) {
	s.store.IncrementItem(id)
}

// Decrement removes one unit from the line for id, dropping the line when its
// quantity reaches zero. Unknown ids are ignored.
func (s *CartService) Decrement(id string) {
	s.store.DecrementItem(id)
}

// Products returns the cart lines in insertion order.
func (s *CartService) Products() []domain.CartLine {
	return s.store.List().Lines()
}

// State returns the current cart value.
func (s *CartService) State() domain.CartState {
	return s.store.List()
}

// Version returns the version of the last committed change.
func (s *CartService) Version() uint64 {
	return s.store.Version()
}

// Ready reports whether the saved cart has been restored.
func (s *CartService) Ready() bool {
	return s.store.Phase() == cartstore.PhaseReady
}

// ConfirmOverwrite lets saves replace a snapshot that could not be read at
// Restore. Until then the cart works in memory but nothing is written; see
// persistence.EventLoadUnavailable.
func (s *CartService) ConfirmOverwrite(ctx context.Context) error {
	if err := s.bridge.ConfirmOverwrite(ctx); err != nil {
		return fmt.Errorf("confirm cart overwrite: %w", err)
	}
	return nil
}

// Warnings streams non-fatal persistence problems.
func (s *CartService) Warnings() <-chan persistence.Event {
	return s.bridge.Events()
}
