package model

import "time"

// SearchResult is one ranked hit from the hybrid query engine.
type SearchResult struct {
	ID            string      `json:"id"`
	NodeType      string      `json:"node_type"`
	Text          string      `json:"text"`
	Score         float64     `json:"score"`
	VectorScore   float64     `json:"vector_score,omitempty"`
	FulltextScore float64     `json:"fulltext_score,omitempty"`
	DocumentID    string      `json:"document_id"`
	DocumentTitle string      `json:"document_title,omitempty"`
	ModuleID      string      `json:"module_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	Entities      []EntityRef `json:"entities,omitempty"`
}

// EntityRef is a lightweight entity reference attached to a search result.
type EntityRef struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       EntityType `json:"type"`
	Confidence float64    `json:"confidence"`
	Hops       int        `json:"hops,omitempty"`
}

// WeightedTerm is an expansion term with its fulltext weight discount.
type WeightedTerm struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// ExpansionInfo reports how the query was expanded for fulltext matching.
type ExpansionInfo struct {
	OriginalQuery string         `json:"original_query"`
	Terms         []WeightedTerm `json:"terms"`
}

// GraphContext holds entities collected by bounded graph expansion, attached
// to a response without altering ranking order.
type GraphContext struct {
	Entities []EntityRef `json:"entities"`
	Hops     int         `json:"hops"`
}

// Citation maps a claim in a synthesized answer to a specific chunk.
type Citation struct {
	Index         int         `json:"index"`
	ChunkID       string      `json:"chunk_id"`
	DocumentID    string      `json:"document_id"`
	DocumentTitle string      `json:"document_title,omitempty"`
	ModuleID      string      `json:"module_id,omitempty"`
	Snippet       string      `json:"snippet"`
	Score         float64     `json:"score"`
	Entities      []EntityRef `json:"entities,omitempty"`
}

// Contradiction surfaces two conflicting claims from different sources.
// Both sides are reported; neither is silently preferred.
type Contradiction struct {
	CitationA   int    `json:"citation_a"`
	CitationB   int    `json:"citation_b"`
	ClaimA      string `json:"claim_a"`
	ClaimB      string `json:"claim_b"`
	Explanation string `json:"explanation"`
}

// SynthesisResult is a multi-document cited answer.
type SynthesisResult struct {
	Answer           string          `json:"answer"`
	Citations        []Citation      `json:"citations"`
	Contradictions   []Contradiction `json:"contradictions"`
	SourcesUsed      int             `json:"sources_used"`
	Confidence       float64         `json:"confidence"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

// SchemaInfo is the node/edge type inventory with counts.
type SchemaInfo struct {
	NodeTypes map[string]int64 `json:"node_types"`
	EdgeTypes map[string]int64 `json:"edge_types"`
}

// Subgraph is a bounded projection of the graph for inspection endpoints.
type Subgraph struct {
	Nodes []Entity       `json:"nodes"`
	Edges []Relationship `json:"edges"`
}
