package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string) Product {
	return Product{
		ID:        id,
		Title:     "Product " + id,
		ImageURL:  "https://img.example.com/" + id + ".png",
		UnitPrice: decimal.RequireFromString("9.90"),
	}
}

// ============================================================================
// WithAdded
// ============================================================================

func TestWithAdded_NewLine(t *testing.T) {
	s := CartState{}.WithAdded(product("p1"))

	require.Equal(t, 1, s.Len())
	line, ok := s.Find("p1")
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, "Product p1", line.Title)
}

func TestWithAdded_SameIDMerges(t *testing.T) {
	s := CartState{}.WithAdded(product("p1")).WithAdded(product("p1"))

	require.Equal(t, 1, s.Len())
	line, _ := s.Find("p1")
	assert.Equal(t, 2, line.Quantity)
}

func TestWithAdded_KeepsOriginalProductFields(t *testing.T) {
	first := product("p1")
	changed := first
	changed.Title = "Renamed"

	s := CartState{}.WithAdded(first).WithAdded(changed)

	line, _ := s.Find("p1")
	assert.Equal(t, "Product p1", line.Title)
	assert.Equal(t, 2, line.Quantity)
}

func TestWithAdded_PreservesInsertionOrder(t *testing.T) {
	s := CartState{}.
		WithAdded(product("p2")).
		WithAdded(product("p1")).
		WithAdded(product("p3")).
		WithAdded(product("p1"))

	lines := s.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "p2", lines[0].ID)
	assert.Equal(t, "p1", lines[1].ID)
	assert.Equal(t, "p3", lines[2].ID)
}

func TestWithAdded_DoesNotMutateReceiver(t *testing.T) {
	before := CartState{}.WithAdded(product("p1"))
	after := before.WithAdded(product("p1")).WithAdded(product("p2"))

	line, _ := before.Find("p1")
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, 1, before.Len())
	assert.Equal(t, 2, after.Len())
}

// ============================================================================
// WithIncrement / WithDecrement
// ============================================================================

func TestWithIncrement(t *testing.T) {
	s, ok := CartState{}.WithAdded(product("p1")).WithIncrement("p1")

	assert.True(t, ok)
	line, _ := s.Find("p1")
	assert.Equal(t, 2, line.Quantity)
}

func TestWithIncrement_UnknownIDIsNoop(t *testing.T) {
	s := CartState{}.WithAdded(product("p1"))

	got, ok := s.WithIncrement("unknown")

	assert.False(t, ok)
	assert.True(t, got.Equal(s))
}

func TestWithDecrement_ReducesQuantity(t *testing.T) {
	s := CartState{}.WithAdded(product("p1")).WithAdded(product("p1"))

	got, ok := s.WithDecrement("p1")

	assert.True(t, ok)
	line, _ := got.Find("p1")
	assert.Equal(t, 1, line.Quantity)
}

func TestWithDecrement_RemovesAtZero(t *testing.T) {
	s := CartState{}.WithAdded(product("p1")).WithAdded(product("p2"))

	got, ok := s.WithDecrement("p1")

	assert.True(t, ok)
	_, found := got.Find("p1")
	assert.False(t, found)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "p2", got.Lines()[0].ID)
	assert.Equal(t, 2, s.Len(), "receiver must be untouched")
}

func TestWithDecrement_UnknownIDIsNoop(t *testing.T) {
	got, ok := CartState{}.WithDecrement("unknown")

	assert.False(t, ok)
	assert.True(t, got.IsEmpty())
}

func TestWithDecrement_NeverNegative(t *testing.T) {
	s := CartState{}.WithAdded(product("p1"))
	s, _ = s.WithDecrement("p1")
	s, ok := s.WithDecrement("p1")

	assert.False(t, ok)
	assert.True(t, s.IsEmpty())
}

// ============================================================================
// Reads
// ============================================================================

func TestItemCount(t *testing.T) {
	s := CartState{}.WithAdded(product("p1")).WithAdded(product("p1")).WithAdded(product("p2"))
	assert.Equal(t, 3, s.ItemCount())
}

func TestLines_ReturnsCopy(t *testing.T) {
	s := CartState{}.WithAdded(product("p1"))

	lines := s.Lines()
	lines[0].Quantity = 99

	line, _ := s.Find("p1")
	assert.Equal(t, 1, line.Quantity)
}

func TestLines_EmptyIsNonNil(t *testing.T) {
	assert.NotNil(t, CartState{}.Lines())
	assert.Empty(t, CartState{}.Lines())
}

func TestNewCartState_CopiesInput(t *testing.T) {
	lines := []CartLine{{Product: product("p1"), Quantity: 3}}
	s := NewCartState(lines...)
	lines[0].Quantity = 1

	line, _ := s.Find("p1")
	assert.Equal(t, 3, line.Quantity)
}

func TestEqual_ComparesPricesByValue(t *testing.T) {
	a := product("p1")
	b := product("p1")
	b.UnitPrice = decimal.RequireFromString("9.9")

	assert.True(t, NewCartState(CartLine{Product: a, Quantity: 1}).Equal(NewCartState(CartLine{Product: b, Quantity: 1})))
	assert.False(t, NewCartState(CartLine{Product: a, Quantity: 1}).Equal(NewCartState(CartLine{Product: a, Quantity: 2})))
	assert.True(t, CartState{}.Equal(NewCartState()))
}
