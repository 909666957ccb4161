package cartstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/cartkeeper/pkg/errors"

	"github.com/utafrali/cartkeeper/internal/domain"
)

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type commitRecorder struct {
	mu      sync.Mutex
	commits []Commit
}

func (r *commitRecorder) record(c Commit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, c)
}

func (r *commitRecorder) all() []Commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Commit(nil), r.commits...)
}

func newReadyStore(t *testing.T) (*Store, *commitRecorder) {
	t.Helper()
	rec := &commitRecorder{}
	s := New(rec.record, newTestLogger())
	require.NoError(t, s.Initialize(domain.CartState{}))
	return s, rec
}

func product(id string) domain.Product {
	return domain.Product{
		ID:        id,
		Title:     "Product " + id,
		ImageURL:  "https://img.example.com/" + id + ".png",
		UnitPrice: decimal.RequireFromString("4.50"),
	}
}

func quantities(st domain.CartState) map[string]int {
	out := map[string]int{}
	for _, l := range st.Lines() {
		out[l.ID] = l.Quantity
	}
	return out
}

// --- Scenarios ---

func TestAddItem_TwiceYieldsOneLine(t *testing.T) {
	s, _ := newReadyStore(t)

	st, err := s.AddItem(product("p1"))
	require.NoError(t, err)
	require.Equal(t, 1, st.Len())
	assert.Equal(t, 1, st.Lines()[0].Quantity)

	st, err = s.AddItem(product("p1"))
	require.NoError(t, err)
	require.Equal(t, 1, st.Len())
	assert.Equal(t, 2, st.Lines()[0].Quantity)
	assert.True(t, st.Equal(s.List()))
}

func TestIncrementDecrement_DownToEmpty(t *testing.T) {
	s, _ := newReadyStore(t)

	_, err := s.AddItem(product("p1"))
	require.NoError(t, err)
	s.IncrementItem("p1")
	s.DecrementItem("p1")
	st := s.DecrementItem("p1")

	assert.True(t, st.IsEmpty())
	assert.True(t, s.List().IsEmpty())
	_, found := s.List().Find("p1")
	assert.False(t, found)
}

func TestIncrementItem_UnknownIDOnEmptyCart(t *testing.T) {
	s, rec := newReadyStore(t)

	st := s.IncrementItem("unknown")

	assert.True(t, st.IsEmpty())
	assert.Empty(t, rec.all(), "no-op must not commit")
	assert.Equal(t, uint64(0), s.Version())
}

func TestUnknownID_LeavesStateUnchanged(t *testing.T) {
	s, rec := newReadyStore(t)
	before, err := s.AddItem(product("p1"))
	require.NoError(t, err)

	afterInc := s.IncrementItem("nope")
	afterDec := s.DecrementItem("nope")

	assert.True(t, before.Equal(afterInc))
	assert.True(t, before.Equal(afterDec))
	assert.Len(t, rec.all(), 1)
}

func TestAddItem_InvalidProduct(t *testing.T) {
	s, rec := newReadyStore(t)

	bad := product("")
	_, err := s.AddItem(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	neg := product("p1")
	neg.UnitPrice = decimal.NewFromInt(-1)
	_, err = s.AddItem(neg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	assert.True(t, s.List().IsEmpty())
	assert.Empty(t, rec.all())
}

func TestAddItem_AcceptsAnyImageReference(t *testing.T) {
	s, rec := newReadyStore(t)

	for i, img := range []string{"assets/shoes.png", "/static/p2.jpg", "shirt.png", ""} {
		p := product(fmt.Sprintf("p%d", i))
		p.ImageURL = img
		_, err := s.AddItem(p)
		require.NoError(t, err, "image %q", img)
	}

	assert.Equal(t, 4, s.List().Len())
	assert.Len(t, rec.all(), 4)
}

// --- Commits ---

func TestCommits_CarryProducedStateAndVersion(t *testing.T) {
	s, rec := newReadyStore(t)

	_, _ = s.AddItem(product("p1"))
	_, _ = s.AddItem(product("p2"))
	s.IncrementItem("p1")
	s.DecrementItem("p2")

	commits := rec.all()
	require.Len(t, commits, 4)
	for i, c := range commits {
		assert.Equal(t, uint64(i+1), c.Version)
	}
	assert.Equal(t, OpAdd, commits[0].Op)
	assert.Equal(t, map[string]int{"p1": 1}, quantities(commits[0].State))
	assert.Equal(t, map[string]int{"p1": 1, "p2": 1}, quantities(commits[1].State))
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, quantities(commits[2].State))
	assert.Equal(t, OpDecrement, commits[3].Op)
	assert.Equal(t, "p2", commits[3].ProductID)
	assert.Equal(t, map[string]int{"p1": 2}, quantities(commits[3].State))
	assert.True(t, commits[3].State.Equal(s.List()))
}

func TestCommits_EarlierStatesStayIntact(t *testing.T) {
	s, rec := newReadyStore(t)

	_, _ = s.AddItem(product("p1"))
	s.IncrementItem("p1")
	s.IncrementItem("p1")

	commits := rec.all()
	require.Len(t, commits, 3)
	assert.Equal(t, 1, quantities(commits[0].State)["p1"])
	assert.Equal(t, 2, quantities(commits[1].State)["p1"])
	assert.Equal(t, 3, quantities(commits[2].State)["p1"])
}

func TestConcurrentMutations_AreSerialized(t *testing.T) {
	s, rec := newReadyStore(t)
	_, err := s.AddItem(product("p1"))
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			s.IncrementItem("p1")
		}()
	}
	wg.Wait()

	assert.Equal(t, workers+1, quantities(s.List())["p1"])

	commits := rec.all()
	require.Len(t, commits, workers+1)
	for i, c := range commits {
		assert.Equal(t, uint64(i+1), c.Version, "commits must arrive in version order")
		assert.Equal(t, i+1, quantities(c.State)["p1"])
	}
}

// --- Lifecycle ---

func TestLifecycle_Phases(t *testing.T) {
	s := New(nil, newTestLogger())
	assert.Equal(t, PhaseUninitialized, s.Phase())

	s.BeginLoading()
	assert.Equal(t, PhaseLoading, s.Phase())

	require.NoError(t, s.Initialize(domain.CartState{}))
	assert.Equal(t, PhaseReady, s.Phase())

	s.BeginLoading()
	assert.Equal(t, PhaseReady, s.Phase(), "BeginLoading after ready is ignored")
}

func TestInitialize_Twice(t *testing.T) {
	s, _ := newReadyStore(t)

	err := s.Initialize(domain.CartState{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestInitialize_ReplacesState(t *testing.T) {
	s := New(nil, newTestLogger())
	loaded := domain.NewCartState(domain.CartLine{Product: product("p9"), Quantity: 4})

	require.NoError(t, s.Initialize(loaded))

	assert.True(t, loaded.Equal(s.List()))
}

func TestQueuedMutations_ReplayAgainstLoadedState(t *testing.T) {
	rec := &commitRecorder{}
	s := New(rec.record, newTestLogger())
	s.BeginLoading()

	st, err := s.AddItem(product("p1"))
	require.NoError(t, err)
	assert.True(t, st.IsEmpty(), "queued mutation is not visible before load")
	s.IncrementItem("p2")
	s.DecrementItem("p3")
	assert.Empty(t, rec.all())

	loaded := domain.NewCartState(
		domain.CartLine{Product: product("p1"), Quantity: 2},
		domain.CartLine{Product: product("p2"), Quantity: 1},
		domain.CartLine{Product: product("p3"), Quantity: 1},
	)
	require.NoError(t, s.Initialize(loaded))

	assert.Equal(t, map[string]int{"p1": 3, "p2": 2}, quantities(s.List()))
	lines := s.List().Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "p1", lines[0].ID)
	assert.Equal(t, "p2", lines[1].ID)

	commits := rec.all()
	require.Len(t, commits, 3)
	assert.Equal(t, []string{OpAdd, OpIncrement, OpDecrement}, []string{commits[0].Op, commits[1].Op, commits[2].Op})
	assert.Equal(t, uint64(3), commits[2].Version)
	assert.True(t, commits[2].State.Equal(s.List()))
}

func TestQueuedMutations_BeforeBeginLoading(t *testing.T) {
	s := New(nil, newTestLogger())

	_, err := s.AddItem(product("p1"))
	require.NoError(t, err)
	require.NoError(t, s.Initialize(domain.CartState{}))

	assert.Equal(t, map[string]int{"p1": 1}, quantities(s.List()))
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "uninitialized", PhaseUninitialized.String())
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "ready", PhaseReady.String())
	assert.Equal(t, "phase(7)", Phase(7).String())
}
