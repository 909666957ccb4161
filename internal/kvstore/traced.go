package kvstore

import (
	"context"
	"errors"

	"github.com/utafrali/cartkeeper/pkg/database"
	apperrors "github.com/utafrali/cartkeeper/pkg/errors"
)

// Traced wraps a Store with one OpenTelemetry span per call.
type Traced struct {
	next   Store
	system string
}

// NewTraced wraps next; system names the backend in span attributes (e.g. "redis").
func NewTraced(next Store, system string) *Traced {
	return &Traced{next: next, system: system}
}

func (t *Traced) Get(ctx context.Context, key string) (value []byte, err error) {
	ctx, op := database.StartStoreOp(ctx, t.system, "get", key)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			op.Miss()
			op.End(nil)
			return
		}
		if err == nil {
			op.SetValueSize(len(value))
		}
		op.End(err)
	}()
	return t.next.Get(ctx, key)
}

func (t *Traced) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, op := database.StartStoreOp(ctx, t.system, "set", key)
	op.SetValueSize(len(value))
	defer func() { op.End(err) }()
	return t.next.Set(ctx, key, value)
}

func (t *Traced) Close() error {
	return t.next.Close()
}
