package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/receiptkit/pkg/logger"
)

// Connect parses cfg.ConnectionURL and pings the server until it answers, up to
// cfg.RetryAttempts times with cfg.RetryInterval between attempts, all within
// cfg.ConnectTimeout. A nil log is allowed.
//
// Errors: ErrEmptyConnectionURL, ErrFailedToParseRedisConnString, ErrRedisNotReady.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*redis.Client, error) {
	log = logger.OrNop(log)

	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		log.WarnContext(ctx, "redis not ready",
			logger.Attempt(attempt),
			slog.String("addr", opts.Addr),
			logger.Error(lastErr),
		)
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(cfg.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, errors.Join(ErrRedisNotReady, lastErr)
}
