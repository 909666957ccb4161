package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/cartkeeper/pkg/database"
	apperrors "github.com/utafrali/cartkeeper/pkg/errors"
	"github.com/utafrali/cartkeeper/pkg/health"
	"github.com/utafrali/cartkeeper/pkg/tracing"

	"github.com/utafrali/cartkeeper/internal/config"
	"github.com/utafrali/cartkeeper/internal/kvstore"
	ledisstore "github.com/utafrali/cartkeeper/internal/kvstore/ledis"
	pgstore "github.com/utafrali/cartkeeper/internal/kvstore/postgres"
	redisstore "github.com/utafrali/cartkeeper/internal/kvstore/redis"
	"github.com/utafrali/cartkeeper/internal/persistence"
	"github.com/utafrali/cartkeeper/internal/service"
)

// App wires together all dependencies of the cart.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   kvstore.Store
	bridge  *persistence.Bridge
	service *service.CartService
	health  *health.Registry

	shutdownTracing tracing.ShutdownFunc
}

// NewApp creates a new application instance, opening the backend selected by
// cfg.Backend.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  "cartkeeper",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	backend, err := openBackend(connectCtx, cfg, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	a := assemble(backend, cfg.Backend, cfg, logger)
	a.shutdownTracing = shutdownTracing
	return a, nil
}

// NewWithStore creates an application over an already opened backend. The App
// takes ownership of store and closes it on Shutdown.
func NewWithStore(store kvstore.Store, cfg *config.Config, logger *slog.Logger) *App {
	return assemble(store, "custom", cfg, logger)
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kvstore.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory cart store, the cart will not survive a restart")
		return kvstore.NewMemory(), nil

	case config.BackendLedis:
		conn, db, err := database.OpenLedis(database.LedisConfig{DataDir: cfg.LedisDir, DB: cfg.LedisDB})
		if err != nil {
			return nil, fmt.Errorf("open cart store: %w", err)
		}
		logger.Info("opened LedisDB", slog.String("dir", cfg.LedisDir), slog.Int("db", cfg.LedisDB))
		return ledisstore.NewStore(conn, db), nil

	case config.BackendRedis:
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open cart store: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		ttl := time.Duration(cfg.RedisTTL) * time.Hour
		return redisstore.NewStore(client, cfg.RedisPrefix, ttl), nil

	case config.BackendPostgres:
		pgCfg := database.DefaultPostgresConfig()
		pgCfg.Host = cfg.PostgresHost
		pgCfg.Port = cfg.PostgresPort
		pgCfg.User = cfg.PostgresUser
		pgCfg.Password = cfg.PostgresPassword
		pgCfg.DBName = cfg.PostgresDB
		pgCfg.SSLMode = cfg.PostgresSSLMode

		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open cart store: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "cart"); err != nil {
			pool.Close()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		store := pgstore.NewStore(pool, pool.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.String("db", cfg.PostgresDB),
		)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown cart backend %q", cfg.Backend)
	}
}

func assemble(backend kvstore.Store, system string, cfg *config.Config, logger *slog.Logger) *App {
	if cfg.SlowOpThreshold > 0 {
		database.SetSlowOpLogging(cfg.SlowOpThreshold, logger)
	}

	breakerCfg := kvstore.DefaultBreakerConfig("cart-" + system)
	breakerCfg.Timeout = cfg.BreakerTimeout
	breakerCfg.FailureRatio = cfg.BreakerFailureRatio
	breakerCfg.MinRequests = cfg.BreakerMinRequests

	// Breaker outermost so calls it rejects never open a span.
	store := kvstore.NewBreaker(kvstore.NewTraced(backend, system), breakerCfg, logger)

	bridge := persistence.NewBridge(store, persistence.Config{
		Key:            cfg.StoreKey,
		MaxAttempts:    cfg.SaveMaxAttempts,
		InitialBackoff: cfg.SaveInitialBackoff,
		MaxBackoff:     cfg.SaveMaxBackoff,
		OpTimeout:      cfg.StoreOpTimeout,
		EventBuffer:    cfg.EventBuffer,
	}, logger)

	a := &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		bridge:  bridge,
		service: service.NewCartService(bridge, logger),
		health:  health.NewRegistry(cfg.StoreOpTimeout),
	}

	a.health.Register("store", func(ctx context.Context) error {
		_, err := store.Get(ctx, cfg.StoreKey)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return nil
	})
	a.health.Register("cart", func(context.Context) error {
		if !a.service.Ready() {
			return fmt.Errorf("cart not restored yet")
		}
		return nil
	})

	return a
}

// Start restores the saved cart.
func (a *App) Start(ctx context.Context) error {
	if err := a.service.Restore(ctx); err != nil {
		return err
	}
	a.logger.Info("cart ready",
		slog.String("key", a.cfg.StoreKey),
		slog.Int("lines", len(a.service.Products())),
	)
	return nil
}

// Service returns the cart handle for the view layer.
func (a *App) Service() *service.CartService {
	return a.service
}

// Health checks the backend and whether the cart has been restored.
func (a *App) Health(ctx context.Context) health.Report {
	return a.health.Check(ctx)
}

// Shutdown stops accepting saves, waits for pending ones and closes the
// backend. Changes made after Shutdown stay in memory and are reported as
// save_failed warnings.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down cart...")

	var errs []error
	if err := a.bridge.Close(ctx); err != nil {
		a.logger.Error("pending cart saves not flushed", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("cart store close error", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("close cart store: %w", err))
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}

	a.logger.Info("cart shutdown complete")
	return errors.Join(errs...)
}
