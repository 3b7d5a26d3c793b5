package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

// Embedder runs the Embed stage: batched calls to the embedding provider.
// A failed batch is retried on its own; batches that already succeeded are
// never re-embedded.
type Embedder struct {
	Client       llm.EmbedderClient
	BatchSize    int
	Dimensions   int
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *slog.Logger
}

func NewEmbedder(client llm.EmbedderClient, batchSize, dimensions int, logger *slog.Logger) *Embedder {
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		Client:       client,
		BatchSize:    batchSize,
		Dimensions:   dimensions,
		MaxRetries:   3,
		RetryBackoff: 250 * time.Millisecond,
		Logger:       logger,
	}
}

func (e *Embedder) Run(ctx context.Context, set model.ChunkSet) (model.EmbeddedChunkSet, error) {
	out := model.EmbeddedChunkSet{ChunkSet: set, Dimensions: e.Dimensions}

	for start := 0; start < len(set.Chunks); start += e.BatchSize {
		end := min(start+e.BatchSize, len(set.Chunks))

		texts := make([]string, 0, end-start)
		for _, c := range set.Chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vecs, err := e.embedBatch(ctx, texts)
		if err != nil {
			return out, taskerr.Transient(fmt.Errorf("embed batch %d-%d of document %s: %w",
				start, end-1, set.DocumentID, err))
		}
		for i, v := range vecs {
			out.Chunks[start+i].Embedding = v
		}
	}
	return out, nil
}

// embedBatch retries only this sub-batch with simple backoff, so one flaky
// batch does not force re-embedding the whole document.
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= e.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs, err := e.Client.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		e.Logger.Warn("embedding batch failed",
			"attempt", attempt, "batchSize", len(texts), "err", err)
		if attempt < e.MaxRetries {
			timer := time.NewTimer(e.RetryBackoff * time.Duration(1<<(attempt-1)))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, lastErr
}
