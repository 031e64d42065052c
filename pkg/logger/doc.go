// Package logger builds the slog loggers used across receiptkit and keeps attribute names
// consistent.
//
// Binaries create one logger at startup, usually from the environment:
//
//	var cfg logger.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	log, err := logger.NewFromConfig(cfg, logger.WithOutput(os.Stderr))
//
// Libraries never create loggers. They accept a *slog.Logger through an option and fall back
// to Nop.
//
// Context extractors add request-scoped attributes at Handle time, so handlers can log with
// the request context and get the request id for free:
//
//	log := logger.New(logger.WithContextExtractors(collector.RequestIDExtractor))
//
// The attribute helpers (Error, ReceiptID, CacheFile, Outcome, ...) return an empty Attr for
// zero values, which slog drops:
//
//	log.Info("flush finished", logger.Error(err))
package logger
