package kvstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/cartkeeper/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testBreakerConfig(name string) BreakerConfig {
	cfg := DefaultBreakerConfig(name)
	cfg.MinRequests = 3
	cfg.FailureRatio = 1
	cfg.Timeout = time.Hour
	return cfg
}

func TestBreaker_PassesThrough(t *testing.T) {
	mem := NewMemory()
	b := NewBreaker(mem, testBreakerConfig("pass"), newTestLogger())
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("v")))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	b := NewBreaker(NewMemory(), testBreakerConfig("notfound"), newTestLogger())

	for i := 0; i < 10; i++ {
		_, err := b.Get(context.Background(), "absent")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_TripsAndFailsFast(t *testing.T) {
	mem := NewMemory()
	down := errors.New("connection refused")
	calls := 0
	mem.BeforeSet(func(context.Context, string, []byte) error {
		calls++
		return down
	})
	b := NewBreaker(mem, testBreakerConfig("trip"), newTestLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Set(ctx, "k", []byte("v")), down)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, float64(2), testutil.ToFloat64(breakerState.WithLabelValues("trip")))

	err := b.Set(ctx, "k", []byte("v"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, calls, "open breaker must not reach the backend")
}

func TestStateToFloat(t *testing.T) {
	assert.Equal(t, float64(0), stateToFloat(gobreaker.StateClosed))
	assert.Equal(t, float64(1), stateToFloat(gobreaker.StateHalfOpen))
	assert.Equal(t, float64(2), stateToFloat(gobreaker.StateOpen))
}
