// Package httpserver runs the collector's HTTP server with graceful shutdown.
//
// Run blocks until its context ends, then calls http.Server.Shutdown bounded by the shutdown
// timeout. Signal handling is left to the caller, usually through signal.NotifyContext:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//	    return err
//	}
//
// Listen and serve failures are wrapped with ErrStart, shutdown failures with ErrShutdown.
package httpserver
