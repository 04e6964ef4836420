package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ragline/knowledge-ingest/internal/config"
	"github.com/ragline/knowledge-ingest/internal/core/domain"
	"github.com/ragline/knowledge-ingest/internal/core/ports"
	"github.com/ragline/knowledge-ingest/internal/core/usecase"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/llm/ollama"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/parser"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/queue/nats"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/repository/postgres"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/resilience"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/segmenter"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/storage/localfs"
)

// App wires every adapter behind the core ports once, for both binaries.
// The api uses Uploader and the read repositories; the worker uses Queue
// and Runner.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    *nats.Queue
	Docs     ports.DocumentRepository
	Chunks   ports.ChunkRepository
	Uploader ports.DocumentUploader
	Runner   ports.IngestionRunner

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	chunks := postgres.NewChunkRepositoryWithBatchSize(db, cfg.ChunkBatchSize)
	datasets := postgres.NewDatasetRepository(db)
	logs := postgres.NewProcessingLogRepository(db)
	checkpoints := postgres.NewCheckpointRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	llmExecutor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSNotifySubject, nats.Options{
		ResilienceExecutor: llmExecutor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient, llmExecutor)
	var enricher ports.ContextEnricher
	if cfg.EnrichmentEnabled {
		enricher = ollama.NewEnricher(ollamaClient, llmExecutor, cfg.EnrichmentConcurrency, logger)
	}

	// Job retries are driven by the orchestrator itself; the breaker
	// stays on the inner LLM and queue calls where flapping is local.
	jobExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.JobMaxAttempts,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     30 * time.Second,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	})

	uploader := usecase.NewUploadDocumentUseCase(docs, storage, queue)
	runner := usecase.NewIngestionOrchestrator(usecase.OrchestratorDeps{
		Documents:   docs,
		Chunks:      chunks,
		Datasets:    datasets,
		Logs:        logs,
		Checkpoints: checkpoints,
		Storage:     storage,
		Parser:      parser.New(),
		Segmenter:   segmenter.New(segmenter.HeuristicScorer{}),
		Enricher:    enricher,
		Embedder:    embedder,
		Notifier:    queue,
		Executor:    jobExecutor,
		SegmentCfg: domain.SegmentConfig{
			MaxChunkSize:      cfg.MaxChunkSize,
			Overlap:           cfg.ChunkOverlap,
			PreserveStructure: cfg.PreserveStructure,
		},
		Logger: logger,
	})

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:    queue,
		Docs:     docs,
		Chunks:   chunks,
		Uploader: uploader,
		Runner:   runner,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
