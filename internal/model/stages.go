package model

// Typed payloads passed between pipeline stages. Each stage consumes the
// previous stage's output and produces the next, so stage order is enforced
// by the type system rather than by convention.

// ParsedText is the output of the Parse stage: normalized plain text.
type ParsedText struct {
	DocumentID string
	ModuleID   string
	Title      string
	MimeType   string
	Text       string
}

// ChunkSet is the output of the Chunk stage.
type ChunkSet struct {
	DocumentID string
	ModuleID   string
	Title      string
	Chunks     []Chunk
	Parents    []ParentChunk
}

// EmbeddedChunkSet is a ChunkSet whose chunks all carry embeddings.
type EmbeddedChunkSet struct {
	ChunkSet
	Dimensions int
}

// Mention links a chunk to an entity it contains.
type Mention struct {
	ChunkID  string
	EntityID string
}

// ExtractedGraph is the output of the Extract stage.
type ExtractedGraph struct {
	EmbeddedChunkSet
	Entities      []Entity
	Relationships []Relationship
	Mentions      []Mention
}

// StoreResult summarizes what the Store stage committed.
type StoreResult struct {
	DocumentID    string
	Chunks        int
	ParentChunks  int
	Entities      int
	Relationships int
}
