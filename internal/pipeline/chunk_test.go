package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

// charCounter is the deterministic chars/4 fallback, independent of whether
// the tiktoken encoding file is available.
func charCounter() *TokenCounter { return &TokenCounter{} }

func TestSplitSentences(t *testing.T) {
	text := "First sentence. Second one! Third?\n\nA paragraph without terminal punctuation"
	sentences := splitSentences(text)
	assert.Equal(t, []string{
		"First sentence.",
		"Second one!",
		"Third?",
		"A paragraph without terminal punctuation",
	}, sentences)
}

func TestChunkerBounds(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{ChunkTokens: 10, OverlapTokens: 0, ParentChunkTokens: 40}, charCounter())
	assert.NoError(t, err)

	// 12 sentences of ~6 tokens each (24 chars / 4).
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("this sentence is fixed. ")
	}

	set, err := chunker.Run(model.ParsedText{DocumentID: "doc-1", ModuleID: "mod-1", Text: b.String()})
	assert.NoError(t, err)
	assert.NotEmpty(t, set.Chunks)

	for i, c := range set.Chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Text)
		assert.Equal(t, "doc-1", c.DocumentID)
		// A chunk may exceed the budget only when a single sentence does;
		// these sentences do not.
		assert.LessOrEqual(t, c.TokenCount, 10)
	}

	// Every sentence survives chunking.
	joined := strings.Join(chunkTexts(set.Chunks), " ")
	assert.Equal(t, 12, strings.Count(joined, "this sentence is fixed."))
}

func TestChunkerOverlap(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{ChunkTokens: 12, OverlapTokens: 6, ParentChunkTokens: 48}, charCounter())
	assert.NoError(t, err)

	text := "Alpha sentence one. Bravo sentence two. Charlie sentence three. Delta sentence four. Echo sentence five."
	set, err := chunker.Run(model.ParsedText{DocumentID: "doc-1", Text: text})
	assert.NoError(t, err)
	assert.Greater(t, len(set.Chunks), 1)

	// Consecutive chunks share their boundary sentence.
	for i := 1; i < len(set.Chunks); i++ {
		prev := strings.Split(set.Chunks[i-1].Text, ". ")
		last := strings.TrimSuffix(prev[len(prev)-1], ".")
		assert.Contains(t, set.Chunks[i].Text, last,
			"chunk %d should start with the overlap from chunk %d", i, i-1)
	}
}

func TestChunkerDeterministicIDs(t *testing.T) {
	chunker, _ := NewChunker(ChunkConfig{ChunkTokens: 10, OverlapTokens: 0}, charCounter())
	parsed := model.ParsedText{DocumentID: "doc-1", Text: "One sentence here. Another sentence here. Third sentence here."}

	first, err := chunker.Run(parsed)
	assert.NoError(t, err)
	second, err := chunker.Run(parsed)
	assert.NoError(t, err)

	assert.Equal(t, len(first.Chunks), len(second.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].ID, second.Chunks[i].ID)
	}
}

func TestChunkerParentGrouping(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{ChunkTokens: 10, OverlapTokens: 0, ParentChunkTokens: 20}, charCounter())
	assert.NoError(t, err)

	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString("this sentence is fixed. ")
	}
	set, err := chunker.Run(model.ParsedText{DocumentID: "doc-1", Text: b.String()})
	assert.NoError(t, err)
	assert.NotEmpty(t, set.Parents)

	parentIDs := map[string]bool{}
	for i, p := range set.Parents {
		assert.Equal(t, i, p.Index)
		assert.LessOrEqual(t, p.TokenCount, 20)
		parentIDs[p.ID] = true
	}

	// Every chunk belongs to exactly one emitted parent, and parent text
	// contains its members.
	for _, c := range set.Chunks {
		assert.True(t, parentIDs[c.ParentID], "chunk %d has unknown parent %s", c.Index, c.ParentID)
	}
	for _, p := range set.Parents {
		for _, c := range set.Chunks {
			if c.ParentID == p.ID {
				assert.Contains(t, p.Text, c.Text)
			}
		}
	}
}

func TestChunkerEmptyText(t *testing.T) {
	chunker, _ := NewChunker(ChunkConfig{ChunkTokens: 10}, charCounter())
	_, err := chunker.Run(model.ParsedText{DocumentID: "doc-1", Text: "   "})
	assert.True(t, errors.Is(err, taskerr.ErrEmptyDocument))
}

func TestNewChunkerRejectsBadConfig(t *testing.T) {
	_, err := NewChunker(ChunkConfig{ChunkTokens: 0}, charCounter())
	assert.Error(t, err)

	_, err = NewChunker(ChunkConfig{ChunkTokens: 10, OverlapTokens: 10}, charCounter())
	assert.Error(t, err)
}

func chunkTexts(chunks []model.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
