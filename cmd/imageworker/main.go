// imageworker consumes image-transformation requests from a
// partitioned queue, runs them through fetch → AI-transform → store,
// and emits success/failure outcome events with retry/DLQ handling.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramirezdev26/swifty-ai-digester/internal/config"
	"github.com/ramirezdev26/swifty-ai-digester/internal/supervisor"
	"github.com/ramirezdev26/swifty-ai-digester/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting imageworker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := supervisor.Run(ctx, cfg, logger); err != nil {
		logger.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}
