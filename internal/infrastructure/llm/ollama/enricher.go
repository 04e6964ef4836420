package ollama

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/resilience"
)

// progressEvery controls how often the enricher invokes its progress
// callback: periodically, not per chunk.
const progressEvery = 10

// Enricher generates a short context prefix per fragment. Enrichment is
// advisory: a fragment whose generation fails proceeds with an empty
// prefix, and only a canceled context aborts the batch.
type Enricher struct {
	client      *Client
	executor    *resilience.Executor
	concurrency int
	logger      *slog.Logger
}

func NewEnricher(client *Client, executor *resilience.Executor, concurrency int, logger *slog.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		client:      client,
		executor:    executor,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (e *Enricher) EnrichChunks(
	ctx context.Context,
	fullText string,
	fragments []domain.Fragment,
	onProgress func(done, total int),
) ([]domain.ChunkContext, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	results := make([]domain.ChunkContext, len(fragments))

	var mu sync.Mutex
	done := 0
	reportDone := func() {
		mu.Lock()
		done++
		current := done
		mu.Unlock()

		if onProgress != nil && (current%progressEvery == 0 || current == len(fragments)) {
			onProgress(current, len(fragments))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range fragments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			prompt := buildContextPrompt(fullText, fragments[i].Content)
			prefix, err := e.generateWithRetry(gctx, prompt)
			if err != nil {
				// Degrade to an empty prefix; the chunk is still usable.
				e.logger.Warn("context_enrichment_degraded",
					"chunk_index", fragments[i].Index,
					"error", err,
				)
				prefix = ""
			}

			results[i] = domain.ChunkContext{
				ChunkIndex:    fragments[i].Index,
				ContextPrefix: prefix,
				Prompt:        prompt,
			}
			reportDone()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, wrapTemporaryIfNeeded("enrich chunks", err)
	}
	return results, nil
}

func (e *Enricher) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	var out string
	call := func(callCtx context.Context) error {
		text, err := e.client.generateText(callCtx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	}

	var err error
	if e.executor != nil {
		err = e.executor.Execute(ctx, "ollama.generate_context", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	return out, err
}
