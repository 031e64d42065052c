package collector

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/receiptkit/pkg/logger"
	"github.com/dmitrymomot/receiptkit/pkg/receipt"
)

// Sink receives every receipt accepted for the first time.
type Sink interface {
	Accept(ctx context.Context, r receipt.Receipt) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r receipt.Receipt) error

func (f SinkFunc) Accept(ctx context.Context, r receipt.Receipt) error {
	return f(ctx, r)
}

// LogSink writes accepted receipts to a logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger discards everything.
func NewLogSink(l *slog.Logger) *LogSink {
	return &LogSink{logger: logger.OrNop(l)}
}

func (s *LogSink) Accept(ctx context.Context, r receipt.Receipt) error {
	s.logger.InfoContext(ctx, "display receipt accepted",
		logger.ReceiptID(r.ID),
		slog.String("schema_version", r.SchemaVersion),
		slog.Time("created_at", r.CreatedAt),
		logger.Attempt(r.SendAttempt),
		slog.Bool("replay", r.Replay),
		slog.Int("payload_bytes", len(r.Payload)),
	)
	return nil
}
