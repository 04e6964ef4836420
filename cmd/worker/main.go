package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ragline/knowledge-ingest/internal/bootstrap"
	"github.com/ragline/knowledge-ingest/internal/config"
	"github.com/ragline/knowledge-ingest/internal/core/domain"
	"github.com/ragline/knowledge-ingest/internal/observability/logging"
	"github.com/ragline/knowledge-ingest/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		logger.Info("worker metrics listening", slog.String("port", cfg.WorkerMetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	jobTimeout := time.Duration(cfg.JobTimeoutSeconds) * time.Second

	logger.Info("worker subscribed",
		slog.String("subject", cfg.NATSIngestSubject),
		slog.Duration("job_timeout", jobTimeout))

	err = app.Queue.SubscribeIngestionTriggers(ctx, func(handlerCtx context.Context, trigger domain.IngestionTrigger) error {
		jobCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		workerMetrics.StartRun()
		started := time.Now()
		outcome, runErr := app.Runner.Run(jobCtx, trigger)
		workerMetrics.FinishRun(serviceName, time.Since(started), runErr)

		if runErr != nil {
			logger.Error("ingestion run failed",
				slog.String("document_id", trigger.DocumentID),
				slog.String("tenant_id", trigger.TenantID),
				slog.String("error", runErr.Error()))
			return runErr
		}

		workerMetrics.ObserveChunks(serviceName, outcome.AutoApproved, outcome.PendingReview)
		if outcome.PendingReview > 0 {
			workerMetrics.ObserveReviewNotification(serviceName)
		}
		logger.Info("ingestion run completed",
			slog.String("document_id", outcome.DocumentID),
			slog.Int("chunks", outcome.ChunkCount),
			slog.Int("auto_approved", outcome.AutoApproved),
			slog.Int("pending_review", outcome.PendingReview))
		return nil
	})
	if err != nil {
		logger.Error("worker subscribe failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
