package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

func chunkSet(n int) model.ChunkSet {
	set := model.ChunkSet{DocumentID: "doc-1"}
	for i := 0; i < n; i++ {
		set.Chunks = append(set.Chunks, model.Chunk{Index: i, Text: "chunk text"})
	}
	return set
}

func TestEmbedderBatches(t *testing.T) {
	client := &mockEmbedder{Dimensions: 4}
	e := NewEmbedder(client, 3, 4, nil)

	out, err := e.Run(context.Background(), chunkSet(7))
	assert.NoError(t, err)
	assert.Equal(t, 3, client.Calls) // 3 + 3 + 1
	for i, c := range out.Chunks {
		assert.Len(t, c.Embedding, 4, "chunk %d", i)
	}
}

func TestEmbedderRetriesOnlyFailedBatch(t *testing.T) {
	// First call fails, then the same batch succeeds on retry. Later
	// batches are embedded exactly once.
	client := &mockEmbedder{Dimensions: 2, FailFirst: 1}
	e := NewEmbedder(client, 2, 2, nil)
	e.RetryBackoff = time.Millisecond

	out, err := e.Run(context.Background(), chunkSet(4))
	assert.NoError(t, err)
	assert.Equal(t, 3, client.Calls) // batch 1 twice, batch 2 once
	for _, c := range out.Chunks {
		assert.NotEmpty(t, c.Embedding)
	}
}

func TestEmbedderExhaustsRetries(t *testing.T) {
	client := &mockEmbedder{Dimensions: 2, FailFirst: 100}
	e := NewEmbedder(client, 2, 2, nil)
	e.MaxRetries = 2
	e.RetryBackoff = time.Millisecond

	_, err := e.Run(context.Background(), chunkSet(2))
	assert.Error(t, err)
	assert.Equal(t, 2, client.Calls)
	assert.Equal(t, taskerr.KindTransient, taskerr.KindOf(err))
	assert.True(t, taskerr.Retryable(err))
}

func TestEmbedderHonorsCancellation(t *testing.T) {
	client := &mockEmbedder{Dimensions: 2, FailFirst: 100}
	e := NewEmbedder(client, 2, 2, nil)
	e.RetryBackoff = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := e.Run(ctx, chunkSet(2))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "cancellation should interrupt the backoff timer")
}
