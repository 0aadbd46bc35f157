package redissource

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
)

// PingConfig controls how long Ping waits for a server to come up.
type PingConfig struct {
	// InitialInterval is the first delay between attempts. Defaults to 100ms.
	InitialInterval time.Duration

	// MaxElapsedTime bounds the total time spent retrying. Defaults to 30s.
	MaxElapsedTime time.Duration

	// MaxTries bounds the number of attempts. Zero means no bound.
	MaxTries uint

	// Logger receives one warning per failed attempt.
	Logger *zap.Logger
}

// Ping checks connectivity, retrying with exponential backoff until the
// server answers or the config's limits are reached.
func Ping(ctx context.Context, client redis.UniversalClient, config PingConfig) error {
	if config.InitialInterval <= 0 {
		config.InitialInterval = 100 * time.Millisecond
	}
	if config.MaxElapsedTime <= 0 {
		config.MaxElapsedTime = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(config.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			config.Logger.Warn("redis not reachable, retrying",
				zap.Error(err),
				zap.Duration("next", next))
		}),
	}
	if config.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(config.MaxTries))
	}

	_, err := backoff.Retry(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	}, opts...)
	if err != nil {
		return pferrors.NewOperationError("redissource", "Ping", err)
	}
	return nil
}
