package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"lead-responder/handler"
	"lead-responder/internal/app"
	"lead-responder/internal/config"
	"lead-responder/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// Each invocation may land on a fresh container, so seen-state must live
	// outside the process.
	if !cfg.Durable() {
		slog.Error("lambda requires a durable seen store", "seen_store", cfg.SeenStore)
		os.Exit(1)
	}

	// ---- Wiring ----
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to build lead responder", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(rt.Responder, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
