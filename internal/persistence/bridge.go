package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	apperrors "github.com/utafrali/cartkeeper/pkg/errors"
	pkglogger "github.com/utafrali/cartkeeper/pkg/logger"

	"github.com/utafrali/cartkeeper/internal/domain"
	"github.com/utafrali/cartkeeper/internal/kvstore"
)

// DefaultKey is the store key the cart snapshot lives under.
const DefaultKey = "@GOMARKETPLACE"

// Config controls snapshot I/O.
type Config struct {
	Key            string
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	OpTimeout      time.Duration
	EventBuffer    int
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Key:            DefaultKey,
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		OpTimeout:      3 * time.Second,
		EventBuffer:    16,
	}
}

var (
	// errSuperseded stops the retry loop once a newer version has been written.
	errSuperseded = errors.New("snapshot superseded by a newer version")
	// errHeld stops the retry loop while writes are held behind an unreadable snapshot.
	errHeld = errors.New("snapshot write held until overwrite is confirmed")
	// errClosed rejects saves after Close.
	errClosed = errors.New("persistence bridge closed")
)

type pendingWrite struct {
	data    []byte
	version uint64
}

// Bridge mirrors cart state to a kvstore.Store under one fixed key.
//
// Writes are last-highest-version-wins: they are serialized, and a write whose
// version is not above the highest one already written is dropped, so an older
// save that finishes late can never overwrite a newer snapshot.
//
// When Load cannot read the store at all, the bridge holds writes instead of
// replacing a snapshot it never saw. Only the newest held write is kept, and it
// is written by ConfirmOverwrite.
type Bridge struct {
	store  kvstore.Store
	cfg    Config
	logger *slog.Logger
	events chan Event

	writeMu   sync.Mutex
	committed uint64        // guarded by writeMu
	guarded   bool          // guarded by writeMu
	held      *pendingWrite // guarded by writeMu

	flightMu sync.Mutex
	inflight int
	idle     chan struct{} // closed whenever inflight is 0
	closed   bool
}

// NewBridge creates a bridge over store. Zero fields in cfg fall back to DefaultConfig.
func NewBridge(store kvstore.Store, cfg Config, logger *slog.Logger) *Bridge {
	def := DefaultConfig()
	if cfg.Key == "" {
		cfg.Key = def.Key
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}

	idle := make(chan struct{})
	close(idle)

	return &Bridge{
		store:  store,
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, cfg.EventBuffer),
		idle:   idle,
	}
}

// Key returns the store key snapshots are written to.
func (b *Bridge) Key() string {
	return b.cfg.Key
}

// Events returns the stream of non-fatal persistence warnings. Events are
// dropped, and logged, when nobody drains the channel fast enough.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// CommittedVersion returns the highest version written to the store so far.
func (b *Bridge) CommittedVersion() uint64 {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.committed
}

// Guarded reports whether writes are being held because the last Load could
// not read the store.
func (b *Bridge) Guarded() bool {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.guarded
}

func (b *Bridge) setGuarded(v bool) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.guarded = v
	if !v {
		b.held = nil
	}
}

// Load reads and decodes the snapshot, retrying failed reads with the save
// backoff policy. It never fails: a missing key yields an empty cart, and a
// corrupt snapshot yields an empty cart plus an EventLoadFailed warning.
//
// If the store cannot be read after all attempts the cart also starts empty,
// but the bridge emits EventLoadUnavailable and holds every write until
// ConfirmOverwrite, so the unread snapshot is not replaced.
func (b *Bridge) Load(ctx context.Context) domain.CartState {
	ctx = pkglogger.WithStoreKey(ctx, b.cfg.Key)
	log := pkglogger.WithContext(ctx, b.logger)

	data, err := b.read(ctx, log)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			b.setGuarded(false)
			SnapshotLoads.WithLabelValues(resultMissing).Inc()
			log.InfoContext(ctx, "no cart snapshot found, starting empty")
			return domain.CartState{}
		}
		b.setGuarded(true)
		SnapshotLoads.WithLabelValues(resultError).Inc()
		b.degradeLoad(ctx, log, EventLoadUnavailable, err)
		return domain.CartState{}
	}
	b.setGuarded(false)

	state, repair, err := Decode(data)
	if err != nil {
		SnapshotLoads.WithLabelValues(resultCorrupt).Inc()
		b.degradeLoad(ctx, log, EventLoadFailed, err)
		return domain.CartState{}
	}

	if repair.Dropped() > 0 {
		b.degradeLoad(ctx, log, EventLoadRepaired,
			fmt.Errorf("dropped %d invalid and %d duplicate records", repair.Invalid, repair.Duplicates))
	}

	SnapshotLoads.WithLabelValues(resultOK).Inc()
	log.InfoContext(ctx, "cart snapshot loaded",
		slog.Int("lines", state.Len()),
		slog.Int("items", state.ItemCount()),
	)
	return state
}

// read fetches the raw snapshot. Absent keys and an open breaker are final
// answers; anything else is retried.
func (b *Bridge) read(ctx context.Context, log *slog.Logger) ([]byte, error) {
	return backoff.Retry(ctx, func() ([]byte, error) {
		opCtx, cancel := context.WithTimeout(ctx, b.cfg.OpTimeout)
		defer cancel()

		data, err := b.store.Get(opCtx, b.cfg.Key)
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrStoreUnavailable) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	},
		backoff.WithBackOff(b.newBackOff()),
		backoff.WithMaxTries(b.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.WarnContext(ctx, "cart snapshot read failed, retrying",
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
}

// ConfirmOverwrite lifts the hold placed by a Load that could not read the
// store, then writes the newest held snapshot, if any.
func (b *Bridge) ConfirmOverwrite(ctx context.Context) error {
	b.writeMu.Lock()
	if !b.guarded {
		b.writeMu.Unlock()
		return nil
	}
	b.guarded = false
	held := b.held
	b.held = nil
	b.writeMu.Unlock()

	b.logger.WarnContext(ctx, "overwrite of unread cart snapshot confirmed",
		slog.String("key", b.cfg.Key),
		slog.Bool("pending_write", held != nil),
	)
	if held == nil {
		return nil
	}
	return b.write(ctx, held.data, held.version)
}

func (b *Bridge) degradeLoad(ctx context.Context, log *slog.Logger, kind EventKind, cause error) {
	err := apperrors.LoadError(b.cfg.Key, cause)
	log.WarnContext(ctx, "cart snapshot unusable, continuing with what could be recovered",
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
	b.emit(Event{Kind: kind, Key: b.cfg.Key, Err: err, At: time.Now().UTC()})
}

// SaveAsync persists state as version in the background. state is encoded
// before SaveAsync returns, so the bytes written are exactly the caller's value.
// It never blocks on I/O. After Close the save is rejected with EventSaveFailed.
func (b *Bridge) SaveAsync(state domain.CartState, version uint64) {
	log := b.logger.With(slog.Uint64("version", version))

	data, err := Encode(state)
	if err != nil {
		b.failSave(context.Background(), log, version, err)
		return
	}
	if !b.begin() {
		b.failSave(context.Background(), log, version, errClosed)
		return
	}

	go func() {
		defer b.finish()
		_ = b.write(context.Background(), data, version)
	}()
}

// Save persists state as version and waits for the outcome. A save superseded
// by a newer version, or held behind an unreadable snapshot, returns nil.
// Failures are also reported as EventSaveFailed.
func (b *Bridge) Save(ctx context.Context, state domain.CartState, version uint64) error {
	log := b.logger.With(slog.Uint64("version", version))

	data, err := Encode(state)
	if err != nil {
		return b.failSave(ctx, log, version, err)
	}
	if !b.begin() {
		return b.failSave(ctx, log, version, errClosed)
	}
	defer b.finish()
	return b.write(ctx, data, version)
}

// Flush waits until no save is in flight. Saves may keep arriving while it
// waits; it returns once they have all finished or ctx is done.
func (b *Bridge) Flush(ctx context.Context) error {
	b.flightMu.Lock()
	idle := b.idle
	b.flightMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush cart snapshot saves: %w", ctx.Err())
	}
}

// Close stops accepting saves and waits for the ones in flight.
func (b *Bridge) Close(ctx context.Context) error {
	b.flightMu.Lock()
	b.closed = true
	b.flightMu.Unlock()
	return b.Flush(ctx)
}

func (b *Bridge) begin() bool {
	b.flightMu.Lock()
	defer b.flightMu.Unlock()

	if b.closed {
		return false
	}
	if b.inflight == 0 {
		b.idle = make(chan struct{})
	}
	b.inflight++
	return true
}

func (b *Bridge) finish() {
	b.flightMu.Lock()
	defer b.flightMu.Unlock()

	b.inflight--
	if b.inflight == 0 {
		close(b.idle)
	}
}

func (b *Bridge) write(ctx context.Context, data []byte, version uint64) error {
	ctx = pkglogger.WithCorrelationID(ctx, uuid.NewString())
	ctx = pkglogger.WithStoreKey(ctx, b.cfg.Key)
	log := pkglogger.WithContext(ctx, b.logger).With(slog.Uint64("version", version))

	start := time.Now()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		SnapshotSaveAttempts.Inc()
		written, err := b.attempt(ctx, data, version)
		switch {
		case errors.Is(err, errHeld), errors.Is(err, apperrors.ErrStoreUnavailable):
			return struct{}{}, backoff.Permanent(err)
		case err != nil:
			return struct{}{}, err
		case !written:
			return struct{}{}, backoff.Permanent(errSuperseded)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b.newBackOff()),
		backoff.WithMaxTries(b.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.WarnContext(ctx, "cart snapshot write failed, retrying",
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
	SnapshotSaveDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		SnapshotSaves.WithLabelValues(resultOK).Inc()
		log.DebugContext(ctx, "cart snapshot saved", slog.Int("bytes", len(data)))
		return nil
	case errors.Is(err, errSuperseded):
		SnapshotSaves.WithLabelValues(resultDiscarded).Inc()
		log.DebugContext(ctx, "cart snapshot write discarded, newer version already stored")
		return nil
	case errors.Is(err, errHeld):
		SnapshotSaves.WithLabelValues(resultHeld).Inc()
		log.DebugContext(ctx, "cart snapshot write held, stored snapshot was never read")
		return nil
	default:
		return b.failSave(ctx, log, version, err)
	}
}

// attempt performs one write under the write lock. It reports false without
// touching the store when a version >= version has already been written, and
// returns errHeld, keeping the newest data, while the bridge is guarded.
func (b *Bridge) attempt(ctx context.Context, data []byte, version uint64) (bool, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if version <= b.committed {
		return false, nil
	}
	if b.guarded {
		if b.held == nil || version > b.held.version {
			b.held = &pendingWrite{data: data, version: version}
		}
		return false, errHeld
	}

	opCtx, cancel := context.WithTimeout(ctx, b.cfg.OpTimeout)
	defer cancel()

	if err := b.store.Set(opCtx, b.cfg.Key, data); err != nil {
		return false, err
	}

	b.committed = version
	SnapshotCommittedVersion.Set(float64(version))
	return true, nil
}

func (b *Bridge) failSave(ctx context.Context, log *slog.Logger, version uint64, cause error) error {
	err := apperrors.SaveError(b.cfg.Key, version, cause)
	SnapshotSaves.WithLabelValues(resultFailed).Inc()
	log.ErrorContext(ctx, "cart snapshot save failed, cart is kept in memory only",
		slog.String("error", err.Error()),
	)
	b.emit(Event{Kind: EventSaveFailed, Key: b.cfg.Key, Version: version, Err: err, At: time.Now().UTC()})
	return err
}

func (b *Bridge) emit(ev Event) {
	select {
	case b.events <- ev:
	default:
		b.logger.Warn("persistence event dropped, channel full",
			slog.String("kind", string(ev.Kind)),
			slog.Uint64("version", ev.Version),
		)
	}
}

func (b *Bridge) newBackOff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.cfg.InitialBackoff
	eb.MaxInterval = b.cfg.MaxBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.25
	return eb
}
