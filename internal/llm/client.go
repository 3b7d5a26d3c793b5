package llm

import (
	"context"
)

// LLMClient generates text completions, used for entity extraction, query
// expansion, synthesis and contradiction checks.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient produces fixed-dimension vectors for chunks and queries.
type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
