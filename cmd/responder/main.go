package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead-responder/internal/app"
	"lead-responder/internal/config"
	"lead-responder/internal/logging"
	"lead-responder/internal/poller"
	"lead-responder/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// ---- Wiring ----
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to start lead responder", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Warn("failed to release resources", "err", err)
		}
	}()
	if !cfg.Durable() {
		slog.Warn("seen-state is in memory; a restart re-answers the newest lead message of every conversation",
			"seen_store", cfg.SeenStore)
	}

	sched, err := poller.NewScheduler(rt.Responder, cfg.Schedule(),
		poller.WithTickTimeout(cfg.TickTimeout),
		poller.WithRunOnStart(cfg.RunOnStart),
		poller.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create scheduler", "err", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		slog.Error("failed to listen", "port", cfg.Port, "err", err)
		os.Exit(1)
	}
	srv := server.New(ln.Addr().String(), server.NewRouter(rt.Registry, rt.LastTick), logger)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	sched.Start(ctx)
	slog.Info("lead responder running", "schedule", cfg.Schedule(), "port", cfg.Port)

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			slog.Error("http server failed", "err", err)
			exitCode = 1
		}
	}

	// ---- Shutdown ----
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TickTimeout+5*time.Second)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("scheduler stop", "err", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "err", err)
	}
	slog.Info("lead responder stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
