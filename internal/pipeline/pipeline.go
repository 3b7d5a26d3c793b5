// Package pipeline implements the five ingestion stages as pure transforms
// with typed input/output contracts. The orchestrator drives them in fixed
// order and handles retry, timeout and progress reporting between stages.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/notegraph/notegraph/internal/config"
	"github.com/notegraph/notegraph/internal/graph"
	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/model"
)

// Pipeline bundles the stage implementations for one deployment.
type Pipeline struct {
	Parse     *ParseStage
	Chunker   *Chunker
	Embedder  *Embedder
	Extractor *Extractor
	Graph     *graph.Adapter
}

func New(cfg config.PipelineConfig, files FileStore, embedder llm.EmbedderClient, generator llm.LLMClient, adapter *graph.Adapter, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	chunker, err := NewChunker(ChunkConfig{
		ChunkTokens:       cfg.ChunkTokens,
		OverlapTokens:     cfg.ChunkOverlapTokens,
		ParentChunkTokens: cfg.ParentChunkTokens,
	}, NewTokenCounter())
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Parse:     &ParseStage{Files: files, Registry: NewParserRegistry()},
		Chunker:   chunker,
		Embedder:  NewEmbedder(embedder, cfg.EmbedBatchSize, cfg.EmbeddingDimensions, logger),
		Extractor: NewExtractor(generator, cfg.MinEntityConfidence, cfg.MaxEntitiesPerParent, logger),
		Graph:     adapter,
	}, nil
}

// Store is the final stage: persist everything through the graph adapter.
// Idempotency lives in the adapter's content-derived keys, so redelivery of
// a task after a crash mid-store reconciles instead of duplicating.
func (p *Pipeline) Store(ctx context.Context, g model.ExtractedGraph) (model.StoreResult, error) {
	return p.Graph.PersistGraph(ctx, g)
}
