// Command displayreceipt runs one display receipt invocation for a notification.
//
// It reads the notification content as JSON from the file given with -in, or from stdin, and
// writes the content back to stdout once the pipeline completes. SIGTERM or SIGINT, or the
// RECEIPT_EXPIRE_AFTER budget, act as the host's termination signal: the content is written at
// once and in-flight work is given -grace to finish.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/receiptkit/pkg/config"
	"github.com/dmitrymomot/receiptkit/pkg/displayreceipt"
	"github.com/dmitrymomot/receiptkit/pkg/logger"
)

func main() {
	in := flag.String("in", "", "notification content JSON file (default stdin)")
	envFile := flag.String("env", ".env", "optional dotenv file")
	grace := flag.Duration("grace", 2*time.Second, "time allowed for in-flight work after the termination signal")
	flag.Parse()

	if err := run(*in, *envFile, *grace); err != nil {
		fmt.Fprintln(os.Stderr, "displayreceipt:", err)
		os.Exit(1)
	}
}

func run(in, envFile string, grace time.Duration) error {
	var logCfg logger.Config
	if err := config.Load(&logCfg, config.WithOptionalEnvFiles(envFile)); err != nil {
		return err
	}
	if logCfg.Service == "" {
		logCfg.Service = "displayreceipt"
	}
	cfg, err := displayreceipt.LoadConfig(config.WithOptionalEnvFiles(envFile))
	if err != nil {
		return err
	}

	log, err := logger.NewFromConfig(logCfg, logger.WithOutput(os.Stderr))
	if err != nil {
		return err
	}

	content, err := readContent(in)
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := displayreceipt.NewFromConfig(ctx, cfg, log)
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			log.Info("termination signal", slog.String("signal", sig.String()))
			p.TimeWillExpire()
		case <-p.Guard().Done():
		}
	}()

	out, runErr := p.Process(ctx, content).Await()
	if runErr != nil {
		log.Warn("display receipt not delivered", logger.Error(runErr))
	}

	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := p.Wait(waitCtx); err != nil {
		log.Warn("background work did not finish in time", logger.Error(err))
	}
	p.Guard().Stop()
	return nil
}

func readContent(path string) (displayreceipt.Content, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return displayreceipt.Content{}, err
		}
		defer f.Close()
		r = f
	}

	var content displayreceipt.Content
	if err := json.NewDecoder(r).Decode(&content); err != nil {
		return displayreceipt.Content{}, fmt.Errorf("decode notification content: %w", err)
	}
	return content, nil
}
