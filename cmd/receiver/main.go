// receiver accepts JSON documents over HTTP and appends each one, with a
// timestamp, to a JSONL file, a Redis list or a Postgres table.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/subygan/receiver/internal/config"
	"github.com/subygan/receiver/internal/logger"
	"github.com/subygan/receiver/internal/server"
	"github.com/subygan/receiver/internal/store"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadReceiver()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logr := logger.New(cfg.Env)

	sink, err := store.Open(context.Background(), cfg.Sink)
	if err != nil {
		logr.Error("failed to open sink", "sink", cfg.Sink.Kind, "err", err)
		os.Exit(1)
	}
	appender := store.NewAppender(sink, cfg.MaxRetries, cfg.RetryDelay, logr)
	defer func() {
		if cerr := appender.Close(); cerr != nil {
			logr.Error("error closing sink", "err", cerr)
		}
	}()

	srv := server.New(cfg, appender, logr)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		if err != nil {
			logr.Error("server error", "err", err)
			os.Exit(1)
		}
		return
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", "err", err)
		os.Exit(1)
	}
}
