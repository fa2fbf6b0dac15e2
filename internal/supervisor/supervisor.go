// Package supervisor owns process boot order and graceful shutdown for
// the worker: bus connect (bounded reconnect) → topology → journal →
// consumer group → health/metrics endpoint, mirroring the boot sequence
// of the teacher's cmd/automata-worker, generalized to this worker's
// extra dependencies (partitioned topology, audit journal).
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ramirezdev26/swifty-ai-digester/internal/backend"
	"github.com/ramirezdev26/swifty-ai-digester/internal/backoff"
	"github.com/ramirezdev26/swifty-ai-digester/internal/config"
	"github.com/ramirezdev26/swifty-ai-digester/internal/consumer"
	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
	"github.com/ramirezdev26/swifty-ai-digester/internal/journal"
	"github.com/ramirezdev26/swifty-ai-digester/internal/mq"
	"github.com/ramirezdev26/swifty-ai-digester/internal/outcome"
	"github.com/ramirezdev26/swifty-ai-digester/internal/pipeline"
)

const (
	dialAttempts    = 5
	dialRetryDelay  = 3 * time.Second
	shutdownGrace   = 10 * time.Second
	drainGraceFloor = 5 * time.Second
)

// Run boots the worker end to end and blocks until ctx is cancelled
// (SIGINT/SIGTERM), then drains in-flight work before returning.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	conn, err := mq.Dial(cfg.RabbitMQURL, logger, dialAttempts, dialRetryDelay)
	if err != nil {
		return fmt.Errorf("connect to bus: %w", err)
	}
	defer conn.Close()
	logger.Info("connected to bus")

	topologyCfg := mq.TopologyConfig{
		Partitions:   cfg.PartitionCount,
		MessageTTLMs: int(cfg.RabbitMQMessageTTL.Milliseconds()),
		DLXExchange:  cfg.RabbitMQDLXExchange,
	}
	if err := mq.SetupTopology(ctx, conn, topologyCfg); err != nil {
		return fmt.Errorf("setup topology: %w", err)
	}
	logger.Info("topology ready", "info", mq.TopologyInfo(topologyCfg))

	var journalRecorder consumer.JournalRecorder
	if cfg.DBURL != "" {
		pool, err := journal.NewPool(ctx)
		if err != nil {
			logger.Warn("journal database unavailable, continuing without audit trail", "error", err)
		} else {
			defer pool.Close()
			journalRecorder = journal.New(pool)
			logger.Info("journal connected")
		}
	}

	publisher := mq.NewPublisher(conn, logger)
	outcomePublisher := outcome.New(publisher)
	scheduler := backoff.NewScheduler(publisher, logger)

	pl := pipeline.New(
		backend.NewHTTPFetcher(),
		backend.NewHTTPTransformer(cfg.TransformBackendURL, cfg.TransformAPIKey),
		backend.NewHTTPStore(cfg.StoreBackendURL, cfg.StoreAPIKey),
	)

	policy := domain.RetryPolicy{
		MaxRetries:             cfg.MaxRetries,
		Delays:                 cfg.RetryDelays,
		ProcessingDeadline:     cfg.ProcessingTimeout,
		TransformInnerRetryCap: cfg.TransformRetryCap,
	}

	dispatcher := consumer.New(pl, scheduler, outcomePublisher, journalRecorder, policy, logger)
	group := consumer.NewGroup(conn, dispatcher, logger, cfg.PartitionCount, cfg.PrefetchCount)
	group.Start(ctx)
	logger.Info("consumer group started", "partitions", cfg.PartitionCount)

	httpServer := startHealthServer(cfg.HealthPort, cfg.WorkerID, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	group.Stop()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainGraceFloor)
	defer drainCancel()
	waitDone := make(chan struct{})
	go func() {
		group.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-drainCtx.Done():
		logger.Warn("drain grace period elapsed before all partitions stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", "error", err)
	}

	logger.Info("worker stopped")
	return nil
}

// healthResponse is the JSON body served at GET /health (spec §6).
type healthResponse struct {
	Status   string `json:"status"`
	Uptime   int64  `json:"uptime"`
	WorkerID string `json:"workerId"`
}

func startHealthServer(port, workerID string, logger *slog.Logger) *http.Server {
	startedAt := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{
			Status:   "ok",
			Uptime:   int64(time.Since(startedAt).Seconds()),
			WorkerID: workerID,
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	return server
}
