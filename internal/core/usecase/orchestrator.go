package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
	"github.com/ragline/knowledge-ingest/internal/core/ports"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/resilience"
)

const embedTextSeparator = "\n\n"

// OrchestratorDeps collects the collaborators of the ingestion pipeline.
// Enricher may be nil; the context generation step is then skipped and
// chunks are persisted with empty context prefixes.
type OrchestratorDeps struct {
	Documents   ports.DocumentRepository
	Chunks      ports.ChunkRepository
	Datasets    ports.DatasetRepository
	Logs        ports.ProcessingLogRepository
	Checkpoints ports.CheckpointRepository
	Storage     ports.ObjectStorage
	Parser      ports.ContentParser
	Segmenter   ports.Segmenter
	Enricher    ports.ContextEnricher
	Embedder    ports.Embedder
	Notifier    ports.Notifier
	Executor    *resilience.Executor
	SegmentCfg  domain.SegmentConfig
	Logger      *slog.Logger
}

// IngestionOrchestrator drives one document through the pipeline:
// parsing, chunking, context generation, embedding, quality check.
// Every step records a checkpoint, so a retried or redelivered job
// resumes at the first step without one instead of starting over.
type IngestionOrchestrator struct {
	docs        ports.DocumentRepository
	chunks      ports.ChunkRepository
	datasets    ports.DatasetRepository
	logs        ports.ProcessingLogRepository
	checkpoints ports.CheckpointRepository
	storage     ports.ObjectStorage
	parser      ports.ContentParser
	segmenter   ports.Segmenter
	enricher    ports.ContextEnricher
	embedder    ports.Embedder
	notifier    ports.Notifier
	executor    *resilience.Executor
	segCfg      domain.SegmentConfig
	logger      *slog.Logger
}

func NewIngestionOrchestrator(deps OrchestratorDeps) *IngestionOrchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionOrchestrator{
		docs:        deps.Documents,
		chunks:      deps.Chunks,
		datasets:    deps.Datasets,
		logs:        deps.Logs,
		checkpoints: deps.Checkpoints,
		storage:     deps.Storage,
		parser:      deps.Parser,
		segmenter:   deps.Segmenter,
		enricher:    deps.Enricher,
		embedder:    deps.Embedder,
		notifier:    deps.Notifier,
		executor:    deps.Executor,
		segCfg:      deps.SegmentCfg,
		logger:      logger,
	}
}

// Run processes a single ingestion trigger. The whole job is retried on
// transient failures; checkpoints written during a failed attempt are
// honored by the next one, so completed steps never re-execute. When
// every attempt fails the document is marked failed with a user-facing
// message and the original error is returned.
func (o *IngestionOrchestrator) Run(ctx context.Context, trigger domain.IngestionTrigger) (*domain.IngestionOutcome, error) {
	var (
		outcome  *domain.IngestionOutcome
		lastStep domain.PipelineStep
	)

	err := o.executor.Execute(ctx, "ingest.document", func(attemptCtx context.Context) error {
		r := &pipelineRun{o: o, trigger: trigger}
		out, err := r.execute(attemptCtx)
		if r.currentStep != "" {
			lastStep = r.currentStep
		}
		if err != nil {
			return err
		}
		outcome = out
		return nil
	}, classifyJobError)
	if err != nil {
		o.handleTerminalFailure(ctx, domain.FailureContext{
			DocumentID: trigger.DocumentID,
			TenantID:   trigger.TenantID,
			Filename:   trigger.Filename,
			Step:       lastStep,
			Err:        err,
		})
		return nil, err
	}
	return outcome, nil
}

// handleTerminalFailure is the last line of defense after all retries
// are exhausted. It persists the failed status and a log entry, and
// never propagates its own errors.
func (o *IngestionOrchestrator) handleTerminalFailure(ctx context.Context, fctx domain.FailureContext) {
	ctx = context.WithoutCancel(ctx)
	msg := userFacingMessage(fctx)
	step := fctx.Step
	if step == "" {
		step = domain.StepParsing
	}

	entry := &domain.ProcessingLogEntry{
		ID:           uuid.NewString(),
		TenantID:     fctx.TenantID,
		DocumentID:   fctx.DocumentID,
		Step:         step,
		Status:       domain.StepFailed,
		Message:      msg,
		ErrorMessage: fctx.Err.Error(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.logs.Append(ctx, entry); err != nil {
		o.logger.Error("failed to persist failure log entry",
			slog.String("document_id", fctx.DocumentID),
			slog.String("error", err.Error()))
	}
	if err := o.docs.UpdateStatus(ctx, fctx.DocumentID, domain.StatusFailed, msg); err != nil {
		o.logger.Error("failed to mark document as failed",
			slog.String("document_id", fctx.DocumentID),
			slog.String("error", err.Error()))
	}
	o.logger.Error("document ingestion failed permanently",
		slog.String("document_id", fctx.DocumentID),
		slog.String("tenant_id", fctx.TenantID),
		slog.String("step", string(step)),
		slog.String("error", fctx.Err.Error()))
}

func userFacingMessage(fctx domain.FailureContext) string {
	if domain.IsKind(fctx.Err, domain.ErrFileNotFound) {
		return fmt.Sprintf("source file %q could not be found in storage", fctx.Filename)
	}
	return fctx.Err.Error()
}

func classifyJobError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsTerminalKind(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

// pipelineRun is the per-attempt state of one pipeline execution.
type pipelineRun struct {
	o           *IngestionOrchestrator
	trigger     domain.IngestionTrigger
	checkpoints map[domain.PipelineStep][]byte
	currentStep domain.PipelineStep
}

type parsingCheckpoint struct {
	Text string `json:"text"`
}

type chunkingCheckpoint struct {
	Fragments []domain.Fragment `json:"fragments"`
}

type contextCheckpoint struct {
	Contexts []domain.ChunkContext `json:"contexts"`
	Skipped  bool                  `json:"skipped,omitempty"`
}

type embeddingCheckpoint struct {
	Vectors [][]float32 `json:"vectors"`
}

func (r *pipelineRun) execute(ctx context.Context) (*domain.IngestionOutcome, error) {
	doc, err := r.o.docs.GetByID(ctx, r.trigger.TenantID, r.trigger.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if r.trigger.DatasetID == nil {
		r.trigger.DatasetID = doc.DatasetID
	}

	cps, err := r.o.checkpoints.ListByDocument(ctx, r.trigger.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	r.checkpoints = cps
	if len(cps) == 0 {
		// Fresh run, not a resume: clear logs from previous processing
		// so the history reflects only this run.
		if err := r.o.logs.DeleteByDocument(ctx, r.trigger.DocumentID); err != nil {
			return nil, fmt.Errorf("clear processing logs: %w", err)
		}
	} else {
		r.o.logger.Info("resuming ingestion from checkpoints",
			slog.String("document_id", r.trigger.DocumentID),
			slog.Int("checkpointed_steps", len(cps)))
	}

	if err := r.o.docs.UpdateStatus(ctx, r.trigger.DocumentID, domain.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("mark document processing: %w", err)
	}

	text, err := r.stepParsing(ctx)
	if err != nil {
		return nil, err
	}
	fragments, err := r.stepChunking(ctx, text)
	if err != nil {
		return nil, err
	}
	contexts, err := r.stepContextGeneration(ctx, text, fragments)
	if err != nil {
		return nil, err
	}
	vectors, err := r.stepEmbedding(ctx, fragments, contexts)
	if err != nil {
		return nil, err
	}
	outcome, err := r.stepQualityCheck(ctx, fragments, contexts, vectors)
	if err != nil {
		return nil, err
	}

	// The run is complete; checkpoints would otherwise make the next
	// trigger for this document resume instead of reprocessing.
	if err := r.o.checkpoints.DeleteByDocument(ctx, r.trigger.DocumentID); err != nil {
		return nil, fmt.Errorf("clear checkpoints: %w", err)
	}
	return outcome, nil
}

func (r *pipelineRun) stepParsing(ctx context.Context) (string, error) {
	var cp parsingCheckpoint
	if r.restore(domain.StepParsing, &cp) {
		return cp.Text, nil
	}
	started := r.begin(ctx, domain.StepParsing)

	reader, err := r.o.storage.Open(ctx, r.trigger.TenantID, r.trigger.FilePath)
	if err != nil {
		return "", r.fail(ctx, domain.StepParsing, started, fmt.Errorf("open source file: %w", err))
	}
	data, err := io.ReadAll(reader)
	if closeErr := reader.Close(); closeErr != nil {
		r.o.logger.Warn("failed to close source file reader",
			slog.String("document_id", r.trigger.DocumentID),
			slog.String("error", closeErr.Error()))
	}
	if err != nil {
		return "", r.fail(ctx, domain.StepParsing, started, fmt.Errorf("read source file: %w", err))
	}
	text, err := r.o.parser.Parse(ctx, data, r.trigger.FileType)
	if err != nil {
		return "", r.fail(ctx, domain.StepParsing, started, fmt.Errorf("parse %s content: %w", r.trigger.FileType, err))
	}

	r.save(ctx, domain.StepParsing, parsingCheckpoint{Text: text})
	r.complete(ctx, domain.StepParsing, started, "document parsed", map[string]any{
		"file_type":  r.trigger.FileType,
		"text_chars": len([]rune(text)),
	})
	return text, nil
}

func (r *pipelineRun) stepChunking(ctx context.Context, text string) ([]domain.Fragment, error) {
	var cp chunkingCheckpoint
	if r.restore(domain.StepChunking, &cp) {
		return cp.Fragments, nil
	}
	started := r.begin(ctx, domain.StepChunking)

	fragments := r.o.segmenter.Segment(text, r.o.segCfg)
	if len(fragments) == 0 {
		err := domain.WrapError(domain.ErrInvalidInput, "segment text",
			fmt.Errorf("document produced no fragments"))
		return nil, r.fail(ctx, domain.StepChunking, started, err)
	}

	r.save(ctx, domain.StepChunking, chunkingCheckpoint{Fragments: fragments})
	r.complete(ctx, domain.StepChunking, started, "text segmented", map[string]any{
		"fragment_count": len(fragments),
	})
	return fragments, nil
}

func (r *pipelineRun) stepContextGeneration(ctx context.Context, text string, fragments []domain.Fragment) ([]domain.ChunkContext, error) {
	var cp contextCheckpoint
	if r.restore(domain.StepContextGeneration, &cp) {
		return cp.Contexts, nil
	}
	started := r.begin(ctx, domain.StepContextGeneration)

	if r.o.enricher == nil {
		r.save(ctx, domain.StepContextGeneration, contextCheckpoint{Skipped: true})
		r.complete(ctx, domain.StepContextGeneration, started, "context generation disabled", map[string]any{
			"skipped": true,
		})
		return nil, nil
	}

	onProgress := func(done, total int) {
		if total == 0 {
			return
		}
		pct := done * 100 / total
		if err := r.o.docs.UpdateProgress(ctx, r.trigger.DocumentID, domain.StepContextGeneration, pct); err != nil {
			r.o.logger.Warn("failed to update enrichment progress",
				slog.String("document_id", r.trigger.DocumentID),
				slog.String("error", err.Error()))
		}
	}
	contexts, err := r.o.enricher.EnrichChunks(ctx, text, fragments, onProgress)
	if err != nil {
		return nil, r.fail(ctx, domain.StepContextGeneration, started, fmt.Errorf("enrich chunks: %w", err))
	}
	if len(contexts) != len(fragments) {
		err := domain.WrapError(domain.ErrIntegrity, "enrich chunks",
			fmt.Errorf("got %d contexts for %d fragments", len(contexts), len(fragments)))
		return nil, r.fail(ctx, domain.StepContextGeneration, started, err)
	}

	r.save(ctx, domain.StepContextGeneration, contextCheckpoint{Contexts: contexts})
	r.complete(ctx, domain.StepContextGeneration, started, "chunk contexts generated", map[string]any{
		"context_count": len(contexts),
	})
	return contexts, nil
}

func (r *pipelineRun) stepEmbedding(ctx context.Context, fragments []domain.Fragment, contexts []domain.ChunkContext) ([][]float32, error) {
	var cp embeddingCheckpoint
	if r.restore(domain.StepEmbedding, &cp) {
		return cp.Vectors, nil
	}
	started := r.begin(ctx, domain.StepEmbedding)

	texts := make([]string, len(fragments))
	for i, frag := range fragments {
		texts[i] = embedText(prefixFor(contexts, i), frag.Content)
	}
	vectors, err := r.o.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, r.fail(ctx, domain.StepEmbedding, started, fmt.Errorf("embed chunks: %w", err))
	}
	if len(vectors) != len(fragments) {
		err := domain.WrapError(domain.ErrIntegrity, "embed chunks",
			fmt.Errorf("got %d vectors for %d fragments", len(vectors), len(fragments)))
		return nil, r.fail(ctx, domain.StepEmbedding, started, err)
	}

	r.save(ctx, domain.StepEmbedding, embeddingCheckpoint{Vectors: vectors})
	r.complete(ctx, domain.StepEmbedding, started, "embeddings generated", map[string]any{
		"vector_count": len(vectors),
	})
	return vectors, nil
}

func (r *pipelineRun) stepQualityCheck(ctx context.Context, fragments []domain.Fragment, contexts []domain.ChunkContext, vectors [][]float32) (*domain.IngestionOutcome, error) {
	started := r.begin(ctx, domain.StepQualityCheck)

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(fragments))
	autoApproved := 0
	for i, frag := range fragments {
		status, approved := domain.GradeScore(frag.QualityScore)
		if approved {
			autoApproved++
		}
		chunks[i] = domain.Chunk{
			ID:            uuid.NewString(),
			TenantID:      r.trigger.TenantID,
			DocumentID:    r.trigger.DocumentID,
			DatasetID:     r.trigger.DatasetID,
			Index:         frag.Index,
			Content:       frag.Content,
			Embedding:     vectors[i],
			QualityScore:  frag.QualityScore,
			Status:        status,
			AutoApproved:  approved,
			ContextPrefix: prefixFor(contexts, i),
			Version:       1,
			Active:        true,
			CreatedAt:     now,
		}
	}

	// Reprocessing must converge to exactly one chunk set per document,
	// so any chunks from a previous run go before the new ones land.
	purged, err := r.o.chunks.DeleteByDocument(ctx, r.trigger.DocumentID)
	if err != nil {
		return nil, r.fail(ctx, domain.StepQualityCheck, started, fmt.Errorf("purge previous chunks: %w", err))
	}
	if purged > 0 {
		r.o.logger.Info("purged chunks from previous run",
			slog.String("document_id", r.trigger.DocumentID),
			slog.Int64("purged", purged))
	}
	if err := r.o.chunks.InsertBatches(ctx, chunks); err != nil {
		return nil, r.fail(ctx, domain.StepQualityCheck, started, fmt.Errorf("persist chunks: %w", err))
	}

	if r.trigger.DatasetID != nil {
		if err := r.o.datasets.RecomputeStats(ctx, r.trigger.TenantID, *r.trigger.DatasetID); err != nil {
			return nil, r.fail(ctx, domain.StepQualityCheck, started, fmt.Errorf("recompute dataset stats: %w", err))
		}
	}

	pending := len(chunks) - autoApproved
	finalStatus := domain.StatusApproved
	if pending > 0 {
		finalStatus = domain.StatusReviewing
	}
	if err := r.o.docs.UpdateStatus(ctx, r.trigger.DocumentID, finalStatus, ""); err != nil {
		return nil, r.fail(ctx, domain.StepQualityCheck, started, fmt.Errorf("finalize document status: %w", err))
	}

	r.complete(ctx, domain.StepQualityCheck, started, "chunks persisted", map[string]any{
		"chunk_count":   len(chunks),
		"auto_approved": autoApproved,
		"pending":       pending,
		"final_status":  string(finalStatus),
	})

	if pending > 0 {
		r.notifyReviewNeeded(ctx, pending)
	}

	return &domain.IngestionOutcome{
		DocumentID:    r.trigger.DocumentID,
		ChunkCount:    len(chunks),
		AutoApproved:  autoApproved,
		PendingReview: pending,
	}, nil
}

// notifyReviewNeeded is best effort. The pipeline already succeeded;
// a notification failure must not fail the job.
func (r *pipelineRun) notifyReviewNeeded(ctx context.Context, pending int) {
	note := domain.ReviewNotification{
		Type:         "chunks_pending_review",
		TenantID:     r.trigger.TenantID,
		DocumentID:   r.trigger.DocumentID,
		PendingCount: pending,
		Message:      fmt.Sprintf("%d chunks of %q need manual review", pending, r.trigger.Filename),
	}
	if err := r.o.notifier.NotifyReviewNeeded(ctx, note); err != nil {
		r.o.logger.Warn("failed to publish review notification",
			slog.String("document_id", r.trigger.DocumentID),
			slog.String("error", err.Error()))
	}
}

// restore loads a step checkpoint into dst. A payload that no longer
// unmarshals is treated as absent and the step re-executes.
func (r *pipelineRun) restore(step domain.PipelineStep, dst any) bool {
	payload, ok := r.checkpoints[step]
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		r.o.logger.Warn("discarding unreadable checkpoint",
			slog.String("document_id", r.trigger.DocumentID),
			slog.String("step", string(step)),
			slog.String("error", err.Error()))
		return false
	}
	r.o.logger.Info("skipping checkpointed step",
		slog.String("document_id", r.trigger.DocumentID),
		slog.String("step", string(step)))
	return true
}

// save persists a step checkpoint. Failures are logged and swallowed:
// the step result is already in hand and losing a checkpoint only
// costs re-execution on a later retry.
func (r *pipelineRun) save(ctx context.Context, step domain.PipelineStep, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.o.logger.Warn("failed to encode checkpoint",
			slog.String("document_id", r.trigger.DocumentID),
			slog.String("step", string(step)),
			slog.String("error", err.Error()))
		return
	}
	if err := r.o.checkpoints.Save(ctx, r.trigger.DocumentID, step, data); err != nil {
		r.o.logger.Warn("failed to save checkpoint",
			slog.String("document_id", r.trigger.DocumentID),
			slog.String("step", string(step)),
			slog.String("error", err.Error()))
	}
}

func (r *pipelineRun) begin(ctx context.Context, step domain.PipelineStep) time.Time {
	r.currentStep = step
	if err := r.o.docs.UpdateProgress(ctx, r.trigger.DocumentID, step, 0); err != nil {
		r.o.logger.Warn("failed to update progress",
			slog.String("document_id", r.trigger.DocumentID),
			slog.String("step", string(step)),
			slog.String("error", err.Error()))
	}
	r.appendLog(ctx, step, domain.StepStarted, "", nil, 0, nil)
	return time.Now()
}

func (r *pipelineRun) complete(ctx context.Context, step domain.PipelineStep, started time.Time, message string, details map[string]any) {
	if err := r.o.docs.UpdateProgress(ctx, r.trigger.DocumentID, step, 100); err != nil {
		r.o.logger.Warn("failed to update progress",
			slog.String("document_id", r.trigger.DocumentID),
			slog.String("step", string(step)),
			slog.String("error", err.Error()))
	}
	r.appendLog(ctx, step, domain.StepCompleted, message, details, time.Since(started), nil)
}

func (r *pipelineRun) fail(ctx context.Context, step domain.PipelineStep, started time.Time, err error) error {
	r.appendLog(ctx, step, domain.StepFailed, "", nil, time.Since(started), err)
	return err
}

func (r *pipelineRun) appendLog(ctx context.Context, step domain.PipelineStep, status domain.StepStatus, message string, details map[string]any, duration time.Duration, stepErr error) {
	entry := &domain.ProcessingLogEntry{
		ID:         uuid.NewString(),
		TenantID:   r.trigger.TenantID,
		DocumentID: r.trigger.DocumentID,
		Step:       step,
		Status:     status,
		Message:    message,
		Details:    details,
		Duration:   duration,
		CreatedAt:  time.Now().UTC(),
	}
	if stepErr != nil {
		entry.ErrorMessage = stepErr.Error()
	}
	if err := r.o.logs.Append(ctx, entry); err != nil {
		r.o.logger.Warn("failed to append processing log",
			slog.String("document_id", r.trigger.DocumentID),
			slog.String("step", string(step)),
			slog.String("error", err.Error()))
	}
}

func prefixFor(contexts []domain.ChunkContext, i int) string {
	if contexts == nil || i >= len(contexts) {
		return ""
	}
	return contexts[i].ContextPrefix
}

func embedText(prefix, content string) string {
	if prefix == "" {
		return content
	}
	return prefix + embedTextSeparator + content
}
