package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/cartkeeper/pkg/database"

// slowOpCfg holds the configurable slow operation logging settings.
var slowOpCfg struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowOpLogging configures slow store operation detection. Operations exceeding
// the threshold are logged as warnings. A zero threshold disables it.
func SetSlowOpLogging(threshold time.Duration, logger *slog.Logger) {
	slowOpCfg.mu.Lock()
	defer slowOpCfg.mu.Unlock()
	slowOpCfg.threshold = threshold
	slowOpCfg.logger = logger
}

func getSlowOpConfig() (time.Duration, *slog.Logger) {
	slowOpCfg.mu.RLock()
	defer slowOpCfg.mu.RUnlock()
	return slowOpCfg.threshold, slowOpCfg.logger
}

// StoreOp is one traced key-value call.
type StoreOp struct {
	ctx       context.Context
	span      trace.Span
	start     time.Time
	system    string
	operation string
	key       string
	size      int
	miss      bool
}

// StartStoreOp opens a client span for one store call:
//
//	ctx, op := database.StartStoreOp(ctx, "redis", "set", key)
//	op.SetValueSize(len(value))
//	defer func() { op.End(err) }()
func StartStoreOp(ctx context.Context, system, operation, key string) (context.Context, *StoreOp) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			attribute.String("kv.key", key),
		),
	)
	return ctx, &StoreOp{
		ctx:       ctx,
		span:      span,
		start:     time.Now(),
		system:    system,
		operation: operation,
		key:       key,
		size:      -1,
	}
}

// SetValueSize records the number of value bytes written or read.
func (op *StoreOp) SetValueSize(n int) {
	op.size = n
	op.span.SetAttributes(attribute.Int("kv.value_size", n))
}

// Miss marks a read that found no value. A miss is an answer, not a failure.
func (op *StoreOp) Miss() {
	op.miss = true
	op.span.SetAttributes(attribute.Bool("kv.hit", false))
}

// End closes the span, recording err if non-nil, and logs the call when it
// exceeded the slow operation threshold.
func (op *StoreOp) End(err error) {
	if err != nil {
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
	}
	op.span.End()

	threshold, logger := getSlowOpConfig()
	if threshold <= 0 || logger == nil {
		return
	}
	elapsed := time.Since(op.start)
	if elapsed < threshold {
		return
	}

	attrs := []any{
		slog.String("system", op.system),
		slog.String("operation", op.operation),
		slog.String("key", op.key),
		slog.Duration("duration", elapsed),
	}
	if op.size >= 0 {
		attrs = append(attrs, slog.Int("bytes", op.size))
	}
	if op.miss {
		attrs = append(attrs, slog.Bool("miss", true))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.WarnContext(op.ctx, "slow store operation detected", attrs...)
}
