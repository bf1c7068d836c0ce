package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/passage/internal/config"
	"github.com/udisondev/passage/internal/server"
)

// drainWait bounds how long the abort watcher lingers after shutdown starts.
// It sits above the server's own connection-drain grace period.
const drainWait = 15 * time.Second

func main() {
	configPath := flag.String("config", "passage.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	setupLogger(cfg.LogLevel)
	slog.Info("starting passage", "config", configPath, "address", cfg.Address)

	adapters, closeAdapters, err := server.BuildAdapters(cfg)
	if err != nil {
		return fmt.Errorf("building adapters: %w", err)
	}
	defer closeAdapters()

	srv, err := server.NewServer(cfg, adapters)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	serverDone := make(chan struct{})
	g.Go(func() error {
		defer close(serverDone)
		return srv.Run(gctx)
	})

	// a second signal aborts the drain instead of waiting out the grace period
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-serverDone:
			return nil
		}
		stop()

		abort := make(chan os.Signal, 1)
		signal.Notify(abort, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(abort)

		select {
		case <-abort:
			slog.Warn("second signal received, aborting connections")
			srv.Abort()
		case <-serverDone:
		case <-time.After(drainWait):
		}
		return nil
	})

	return g.Wait()
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
