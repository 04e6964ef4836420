package ollama

import (
	"context"
	"fmt"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
	"github.com/ragline/knowledge-ingest/internal/infrastructure/resilience"
)

// Embedder turns a batch of texts into a parallel array of vectors in
// one call. Batch failure is all-or-nothing: the job-level retry owns
// recovery, there is no partial-credit path.
type Embedder struct {
	client   *Client
	executor *resilience.Executor
}

func NewEmbedder(client *Client, executor *resilience.Executor) *Embedder {
	return &Embedder{client: client, executor: executor}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}

	call := func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	}

	var err error
	if e.executor != nil {
		err = e.executor.Execute(ctx, "ollama.embed", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed texts", err)
	}

	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrIntegrity,
			"embed texts",
			fmt.Errorf("embeddings/texts mismatch: %d/%d", len(response.Embeddings), len(texts)),
		)
	}
	return response.Embeddings, nil
}
