// Package cart is a persistent shopping cart for client applications.
//
// A cart is opened once per process and handed to the view layer:
//
//	c, err := cart.Open(ctx)
//	if err != nil {
//		return err
//	}
//	defer c.Shutdown(context.Background())
//
//	svc := c.Service()
//	_ = svc.AddToCart(cart.Product{ID: "42", Title: "Sneakers", UnitPrice: decimal.NewFromInt(200)})
//
// Every change is saved in the background. Saves never block the caller, and a
// save that finishes late never overwrites a newer one. Persistence problems are
// reported on Service().Warnings() instead of failing cart operations.
package cart

import (
	"context"
	"fmt"
	"log/slog"

	pkgconfig "github.com/utafrali/cartkeeper/pkg/config"
	"github.com/utafrali/cartkeeper/pkg/logger"

	"github.com/utafrali/cartkeeper/internal/app"
	"github.com/utafrali/cartkeeper/internal/config"
	"github.com/utafrali/cartkeeper/internal/domain"
	"github.com/utafrali/cartkeeper/internal/kvstore"
	"github.com/utafrali/cartkeeper/internal/persistence"
	"github.com/utafrali/cartkeeper/internal/service"
)

type (
	Product   = domain.Product
	CartLine  = domain.CartLine
	CartState = domain.CartState
	Event     = persistence.Event
	EventKind = persistence.EventKind
	Store     = kvstore.Store
	Service   = service.CartService
	App       = app.App
)

const (
	EventLoadFailed      = persistence.EventLoadFailed
	EventLoadUnavailable = persistence.EventLoadUnavailable
	EventLoadRepaired    = persistence.EventLoadRepaired
	EventSaveFailed      = persistence.EventSaveFailed
)

// NewMemoryStore returns a Store that keeps snapshots in process memory.
func NewMemoryStore() *kvstore.Memory {
	return kvstore.NewMemory()
}

// Option customizes Open and New.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	key     string
	envOpts []pkgconfig.Option
}

// WithLogger sets the logger. The default is a JSON logger at LOG_LEVEL.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithKey overrides CART_STORE_KEY.
func WithKey(key string) Option {
	return func(o *options) { o.key = key }
}

// WithEnvPrefix reads every variable as <prefix><NAME>.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envOpts = append(o.envOpts, pkgconfig.WithPrefix(prefix)) }
}

// WithEnvironment reads variables from vars instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) { o.envOpts = append(o.envOpts, pkgconfig.WithEnvironment(vars)) }
}

func resolve(opts []Option) (*config.Config, *slog.Logger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load(o.envOpts...)
	if err != nil {
		return nil, nil, err
	}
	if o.key != "" {
		cfg.StoreKey = o.key
	}

	l := o.logger
	if l == nil {
		l = logger.New("cart", cfg.LogLevel)
	}
	return cfg, l, nil
}

// Open builds a cart on the backend selected by CART_BACKEND and restores the
// saved snapshot.
func Open(ctx context.Context, opts ...Option) (*App, error) {
	cfg, l, err := resolve(opts)
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("start cart: %w", err)
	}
	return a, nil
}

// New builds a cart over store and restores the saved snapshot. The returned
// App owns store and closes it on Shutdown.
func New(ctx context.Context, store Store, opts ...Option) (*App, error) {
	cfg, l, err := resolve(opts)
	if err != nil {
		return nil, err
	}

	a := app.NewWithStore(store, cfg, l)
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("start cart: %w", err)
	}
	return a, nil
}
