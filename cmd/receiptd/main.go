// Command receiptd runs the display receipt collector.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/receiptkit/pkg/collector"
	"github.com/dmitrymomot/receiptkit/pkg/config"
	"github.com/dmitrymomot/receiptkit/pkg/httpserver"
	"github.com/dmitrymomot/receiptkit/pkg/logger"
	"github.com/dmitrymomot/receiptkit/pkg/redis"
)

type appConfig struct {
	Log       logger.Config
	HTTP      httpserver.Config
	Collector collector.Config
	Redis     redis.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "receiptd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg, config.WithOptionalEnvFiles(".env")); err != nil {
		return err
	}
	if err := cfg.Collector.Validate(); err != nil {
		return err
	}

	if cfg.Log.Service == "" {
		cfg.Log.Service = "receiptd"
	}
	log, err := logger.NewFromConfig(cfg.Log, logger.WithContextExtractors(collector.RequestIDExtractor))
	if err != nil {
		return err
	}
	logger.SetAsDefault(log)

	var (
		dedup collector.Deduplicator
		opts  = []collector.Option{
			collector.WithLogger(log),
			collector.WithMaxBodyBytes(cfg.Collector.MaxBodyBytes),
		}
	)
	switch cfg.Collector.DedupBackend {
	case collector.DedupRedis:
		client, err := redis.Connect(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		defer client.Close()

		rd, err := collector.NewRedisDeduplicator(client, cfg.Collector.RedisPrefix, cfg.Collector.DedupTTL)
		if err != nil {
			return err
		}
		dedup = rd

		ping := redis.Healthcheck(client)
		opts = append(opts, collector.WithReadiness("redis", func(r *http.Request) error {
			return ping(r.Context())
		}))
	default:
		dedup = collector.NewMemoryDeduplicator(cfg.Collector.MemoryCapacity, cfg.Collector.DedupTTL)
	}

	handler, err := collector.New(dedup, collector.NewLogSink(log.With(logger.Component("sink"))), opts...)
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "starting collector",
		slog.String("dedup_backend", cfg.Collector.DedupBackend),
		slog.Duration("dedup_ttl", cfg.Collector.DedupTTL),
	)

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	if err := srv.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
