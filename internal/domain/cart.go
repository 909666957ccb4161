package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Product is a catalog item as handed to the cart by the view layer.
// ID is the stable external identifier (catalog SKU) and never changes once in the cart.
type Product struct {
	ID        string          `validate:"required,max=128"`
	Title     string          `validate:"required"`
	ImageURL  string
	UnitPrice decimal.Decimal `validate:"gte=0"`
}

// CartLine is a product together with how many of it the shopper selected.
// Quantity is always >= 1; a line that would drop to zero is removed instead.
type CartLine struct {
	Product
	Quantity int
}

// CartState is an ordered, id-unique list of cart lines.
//
// Values are immutable: the With* methods return a new state and never write
// into a backing array that another CartState may share. This is what lets a
// committed state be handed to an asynchronous save without copying it again.
type CartState struct {
	lines []CartLine
}

// NewCartState builds a state from lines, copying them.
func NewCartState(lines ...CartLine) CartState {
	if len(lines) == 0 {
		return CartState{}
	}
	return CartState{lines: slices.Clone(lines)}
}

// Lines returns a copy of the lines in insertion order.
func (s CartState) Lines() []CartLine {
	if len(s.lines) == 0 {
		return []CartLine{}
	}
	return slices.Clone(s.lines)
}

// Len returns the number of distinct lines.
func (s CartState) Len() int {
	return len(s.lines)
}

// IsEmpty reports whether the cart has no lines.
func (s CartState) IsEmpty() bool {
	return len(s.lines) == 0
}

// ItemCount returns the total quantity across all lines.
func (s CartState) ItemCount() int {
	var count int
	for _, line := range s.lines {
		count += line.Quantity
	}
	return count
}

// FindIndex returns the index of the line for the given product id, or -1.
func (s CartState) FindIndex(id string) int {
	return slices.IndexFunc(s.lines, func(l CartLine) bool {
		return l.ID == id
	})
}

// Find returns the line for the given product id.
func (s CartState) Find(id string) (CartLine, bool) {
	i := s.FindIndex(id)
	if i < 0 {
		return CartLine{}, false
	}
	return s.lines[i], true
}

// Equal reports whether both states hold the same lines in the same order.
// Prices compare by numeric value, so "12.5" equals "12.50".
func (s CartState) Equal(other CartState) bool {
	return slices.EqualFunc(s.lines, other.lines, func(a, b CartLine) bool {
		return a.ID == b.ID &&
			a.Title == b.Title &&
			a.ImageURL == b.ImageURL &&
			a.UnitPrice.Equal(b.UnitPrice) &&
			a.Quantity == b.Quantity
	})
}

// WithAdded returns the state after adding one unit of p. An existing line keeps
// its product fields and gains one unit; otherwise a new line is appended.
func (s CartState) WithAdded(p Product) CartState {
	if i := s.FindIndex(p.ID); i >= 0 {
		return s.withQuantity(i, s.lines[i].Quantity+1)
	}
	lines := make([]CartLine, len(s.lines), len(s.lines)+1)
	copy(lines, s.lines)
	lines = append(lines, CartLine{Product: p, Quantity: 1})
	return CartState{lines: lines}
}

// WithIncrement returns the state after adding one unit to the line for id.
// The second result is false, and the receiver is returned unchanged, when id is absent.
func (s CartState) WithIncrement(id string) (CartState, bool) {
	i := s.FindIndex(id)
	if i < 0 {
		return s, false
	}
	return s.withQuantity(i, s.lines[i].Quantity+1), true
}

// WithDecrement returns the state after removing one unit from the line for id,
// dropping the line when it reaches zero. Absent ids leave the receiver unchanged.
func (s CartState) WithDecrement(id string) (CartState, bool) {
	i := s.FindIndex(id)
	if i < 0 {
		return s, false
	}
	if s.lines[i].Quantity <= 1 {
		lines := make([]CartLine, 0, len(s.lines)-1)
		lines = append(lines, s.lines[:i]...)
		lines = append(lines, s.lines[i+1:]...)
		return CartState{lines: lines}, true
	}
	return s.withQuantity(i, s.lines[i].Quantity-1), true
}

func (s CartState) withQuantity(i, qty int) CartState {
	lines := slices.Clone(s.lines)
	lines[i].Quantity = qty
	return CartState{lines: lines}
}
