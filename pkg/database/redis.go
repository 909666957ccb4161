package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DefaultRedisConfig returns sensible defaults for Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
	}
}

// NewRedisClient creates a new Redis client and verifies the connection,
// retrying the ping with exponential backoff.
func NewRedisClient(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx).Err()
	},
		backoff.WithBackOff(connectBackOff()),
		backoff.WithMaxTries(defaultRetryAttempts),
		backoff.WithNotify(notifyRetry(logger, "redis ping failed, retrying")),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

const (
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 1 * time.Second
	retryJitterFraction  = 0.25
)

// connectBackOff returns the startup retry policy: 1s, 2s, 4s with ±25% jitter.
func connectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultRetryBaseWait
	b.RandomizationFactor = retryJitterFraction
	b.Multiplier = 2
	b.MaxInterval = defaultRetryBaseWait << (defaultRetryAttempts - 1)
	return b
}

func notifyRetry(logger *slog.Logger, msg string) backoff.Notify {
	return func(err error, wait time.Duration) {
		if logger == nil {
			return
		}
		logger.Warn(msg,
			slog.Duration("backoff", wait),
			slog.Int("max_attempts", defaultRetryAttempts),
			slog.String("error", err.Error()),
		)
	}
}
