package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

func embeddedSet(parents ...string) model.EmbeddedChunkSet {
	set := model.ChunkSet{DocumentID: "doc-1", ModuleID: "mod-1"}
	for i, text := range parents {
		set.Parents = append(set.Parents, model.ParentChunk{
			ID: parentChunkID("doc-1", i), DocumentID: "doc-1", Index: i, Text: text,
		})
		set.Chunks = append(set.Chunks, model.Chunk{
			ID: chunkID("doc-1", i), DocumentID: "doc-1", Index: i, Text: text,
		})
	}
	return model.EmbeddedChunkSet{ChunkSet: set}
}

func TestExtractorConfidenceFilter(t *testing.T) {
	client := &mockLLM{Response: `{
		"entities": [
			{"name": "Gradient Descent", "type": "Methodology", "confidence": 0.9},
			{"name": "Vague Idea", "type": "Concept", "confidence": 0.3}
		],
		"relationships": []
	}`}
	e := NewExtractor(client, 0.5, 15, nil)

	out, err := e.Run(context.Background(), embeddedSet("Gradient Descent is covered here."))
	assert.NoError(t, err)
	assert.Len(t, out.Entities, 1)
	assert.Equal(t, "Gradient Descent", out.Entities[0].Name)
}

func TestExtractorDeduplicatesAcrossParents(t *testing.T) {
	// The same entity extracted from two parent chunks merges into one,
	// keeping the highest confidence and the first non-empty definition.
	client := &mockLLM{ResponseQueue: []string{
		`{"entities": [{"name": "backpropagation", "type": "Concept", "confidence": 0.6}], "relationships": []}`,
		`{"entities": [{"name": "Backpropagation", "type": "Concept", "confidence": 0.9, "definition": "gradient computation"}], "relationships": []}`,
	}}
	e := NewExtractor(client, 0.5, 15, nil)

	out, err := e.Run(context.Background(), embeddedSet("part one about backpropagation.", "part two about backpropagation."))
	assert.NoError(t, err)
	assert.Len(t, out.Entities, 1)
	assert.Equal(t, 0.9, out.Entities[0].Confidence)
	assert.Equal(t, "gradient computation", out.Entities[0].Definition)
}

func TestExtractorRelationships(t *testing.T) {
	client := &mockLLM{Response: `{
		"entities": [
			{"name": "Overfitting", "type": "Concept", "confidence": 0.9},
			{"name": "Regularization", "type": "Methodology", "confidence": 0.8}
		],
		"relationships": [
			{"source": "Regularization", "target": "Overfitting", "type": "supports", "confidence": 0.8, "fact": "reduces"},
			{"source": "Regularization", "target": "Unknown Thing", "type": "relates-to", "confidence": 0.9},
			{"source": "Regularization", "target": "Overfitting", "type": "invented-type", "confidence": 0.9}
		]
	}`}
	e := NewExtractor(client, 0.5, 15, nil)

	out, err := e.Run(context.Background(), embeddedSet("Regularization fights overfitting."))
	assert.NoError(t, err)
	// Only the edge between two accepted entities with a known type survives.
	assert.Len(t, out.Relationships, 1)
	assert.Equal(t, model.RelSupports, out.Relationships[0].Type)
}

func TestExtractorRelationshipIDsDeterministic(t *testing.T) {
	response := `{
		"entities": [
			{"name": "A", "type": "Concept", "confidence": 0.9},
			{"name": "B", "type": "Concept", "confidence": 0.9}
		],
		"relationships": [
			{"source": "A", "target": "B", "type": "relates-to", "confidence": 0.9}
		]
	}`
	e := NewExtractor(&mockLLM{Response: response}, 0.5, 15, nil)
	first, err := e.Run(context.Background(), embeddedSet("A and B."))
	assert.NoError(t, err)

	e2 := NewExtractor(&mockLLM{Response: response}, 0.5, 15, nil)
	second, err := e2.Run(context.Background(), embeddedSet("A and B."))
	assert.NoError(t, err)

	assert.Equal(t, first.Relationships[0].ID, second.Relationships[0].ID)
}

func TestExtractorSkipsUnparseableResponse(t *testing.T) {
	client := &mockLLM{ResponseQueue: []string{
		"sorry, I cannot do that",
		`{"entities": [{"name": "Entropy", "type": "Concept", "confidence": 0.9}], "relationships": []}`,
	}}
	e := NewExtractor(client, 0.5, 15, nil)

	out, err := e.Run(context.Background(), embeddedSet("first parent.", "second parent about entropy."))
	assert.NoError(t, err)
	assert.Len(t, out.Entities, 1)
}

func TestExtractorLLMFailureIsTransient(t *testing.T) {
	client := &mockLLM{Err: errors.New("rate limited")}
	e := NewExtractor(client, 0.5, 15, nil)

	_, err := e.Run(context.Background(), embeddedSet("some text."))
	assert.Equal(t, taskerr.KindTransient, taskerr.KindOf(err))
}

func TestBuildMentions(t *testing.T) {
	chunks := []model.Chunk{
		{ID: "c1", Text: "Entropy measures disorder."},
		{ID: "c2", Text: "Unrelated content."},
	}
	entities := []model.Entity{
		{ID: "e1", Name: "Entropy"},
		{ID: "e2", Name: "Phantom Concept"},
	}
	mentions := buildMentions(chunks, entities)

	assert.Equal(t, []model.Mention{
		{ChunkID: "c1", EntityID: "e1"},
		// Never mentioned verbatim: anchored to the first chunk.
		{ChunkID: "c1", EntityID: "e2"},
	}, mentions)
}
