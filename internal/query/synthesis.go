package query

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

// SynthesisParams configures a multi-document query.
type SynthesisParams struct {
	Query                string
	ModuleIDs            []string
	MaxDocuments         int
	MaxChunksPerDocument int
	DetectContradictions bool
	IncludeEntityContext bool
	CitationStyle        string
}

// Citation styles. Inline keeps the [n] markers as the model emits them;
// footnote appends a numbered source list so the markers resolve without a
// separate citations lookup.
const (
	CitationInline   = "inline"
	CitationFootnote = "footnote"
)

const synthesisPromptTemplate = `Answer the question using only the numbered sources below. Cite sources
inline as [1], [2] and so on. If the sources do not contain the answer, say
so. Be concise.

Question: %s

Sources:
%s

Respond with JSON only, no other text:
{"answer": "your answer with [n] citations"}`

const contradictionPromptTemplate = `Compare the numbered claims below, which come from different documents.
Identify pairs that directly contradict each other. Unrelated or merely
different claims are not contradictions.

Claims:
%s

Respond with JSON only, no other text:
{"contradictions": [{"a": 1, "b": 2, "claim_a": "...", "claim_b": "...", "explanation": "..."}]}`

type synthesisResponse struct {
	Answer string `json:"answer"`
}

type contradictionResponse struct {
	Contradictions []struct {
		A           int    `json:"a"`
		B           int    `json:"b"`
		ClaimA      string `json:"claim_a"`
		ClaimB      string `json:"claim_b"`
		Explanation string `json:"explanation"`
	} `json:"contradictions"`
}

// Synthesize answers a question across multiple completed documents. It
// selects the best chunks per document by embedding similarity, asks the LLM
// for a cited answer, then runs a contradiction pass over the sources.
func (e *Engine) Synthesize(ctx context.Context, params SynthesisParams) (*model.SynthesisResult, error) {
	start := time.Now()

	if params.Query == "" {
		return nil, taskerr.Validation("query must not be empty")
	}
	if e.LLM == nil {
		return nil, taskerr.Validation("synthesis requires a generation-capable llm provider")
	}
	style := params.CitationStyle
	if style == "" {
		style = CitationInline
	}
	if style != CitationInline && style != CitationFootnote {
		return nil, taskerr.Validation("citation_style must be %q or %q, got %q",
			CitationInline, CitationFootnote, params.CitationStyle)
	}
	maxDocs := params.MaxDocuments
	if maxDocs <= 0 {
		maxDocs = e.cfg.MaxDocuments
	}
	maxChunks := params.MaxChunksPerDocument
	if maxChunks <= 0 {
		maxChunks = e.cfg.MaxChunksPerDocument
	}

	docs, err := e.Graph.DocumentsByModules(ctx, params.ModuleIDs, maxDocs)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, taskerr.ErrDocumentNotFound
	}

	queryEmbedding, err := e.Embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	citations := e.selectSources(ctx, docs, queryEmbedding, maxChunks)
	if len(citations) == 0 {
		return &model.SynthesisResult{
			Answer:           "No relevant content was found in the selected documents.",
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	if params.IncludeEntityContext {
		e.attachCitationEntities(ctx, citations)
	}

	answer, err := e.generateAnswer(ctx, params.Query, citations)
	if err != nil {
		return nil, err
	}
	if style == CitationFootnote {
		answer = appendFootnotes(answer, citations)
	}

	result := &model.SynthesisResult{
		Answer:    answer,
		Citations: citations,
	}
	docsUsed := map[string]bool{}
	for _, c := range citations {
		docsUsed[c.DocumentID] = true
	}
	result.SourcesUsed = len(docsUsed)

	if params.DetectContradictions && len(citations) > 1 {
		contradictions, err := e.detectContradictions(ctx, citations)
		if err != nil {
			e.logger.Warn("contradiction pass failed", "err", err)
		} else {
			result.Contradictions = contradictions
		}
	}

	result.Confidence = synthesisConfidence(citations, len(result.Contradictions))
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// selectSources scores each document's chunks against the query embedding and
// keeps the top maxChunks per document. Documents whose chunks cannot be
// loaded are skipped rather than failing the whole synthesis.
func (e *Engine) selectSources(ctx context.Context, docs []model.Document, queryEmbedding []float32, maxChunks int) []model.Citation {
	var citations []model.Citation
	for _, doc := range docs {
		chunks, err := e.Graph.DocumentChunks(ctx, doc.ID)
		if err != nil {
			e.logger.Warn("failed to load chunks for synthesis", "document_id", doc.ID, "err", err)
			continue
		}

		type scored struct {
			chunk model.Chunk
			score float64
		}
		ranked := make([]scored, 0, len(chunks))
		for _, c := range chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			ranked = append(ranked, scored{chunk: c, score: cosineSimilarity(queryEmbedding, c.Embedding)})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].score != ranked[j].score {
				return ranked[i].score > ranked[j].score
			}
			return ranked[i].chunk.ID < ranked[j].chunk.ID
		})
		if len(ranked) > maxChunks {
			ranked = ranked[:maxChunks]
		}

		for _, s := range ranked {
			citations = append(citations, model.Citation{
				Index:         len(citations) + 1,
				ChunkID:       s.chunk.ID,
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				ModuleID:      doc.ModuleID,
				Snippet:       snippet(s.chunk.Text, 280),
				Score:         s.score,
			})
		}
	}
	return citations
}

// attachCitationEntities decorates each citation with the entities its chunk
// contains. Failures degrade to citations without entity context.
func (e *Engine) attachCitationEntities(ctx context.Context, citations []model.Citation) {
	chunkIDs := make([]string, len(citations))
	for i, c := range citations {
		chunkIDs[i] = c.ChunkID
	}
	entities, err := e.Graph.EntitiesForChunks(ctx, chunkIDs)
	if err != nil {
		e.logger.Warn("failed to load citation entities", "err", err)
		return
	}
	for i := range citations {
		citations[i].Entities = entities[citations[i].ChunkID]
	}
}

func appendFootnotes(answer string, citations []model.Citation) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(answer))
	b.WriteString("\n\nSources:")
	for _, c := range citations {
		title := c.DocumentTitle
		if title == "" {
			title = c.DocumentID
		}
		fmt.Fprintf(&b, "\n[%d] %s", c.Index, title)
	}
	return b.String()
}

func (e *Engine) generateAnswer(ctx context.Context, query string, citations []model.Citation) (string, error) {
	var sources strings.Builder
	for _, c := range citations {
		fmt.Fprintf(&sources, "[%d] (%s) %s\n", c.Index, c.DocumentTitle, c.Snippet)
	}
	prompt := fmt.Sprintf(synthesisPromptTemplate, query, sources.String())
	raw, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", taskerr.Transient(fmt.Errorf("synthesis generation failed: %w", err))
	}
	parsed, err := llm.ParseJSON[synthesisResponse](raw)
	if err != nil {
		// Fall back to the raw completion when the model ignores the
		// JSON envelope; the answer is still usable.
		return strings.TrimSpace(raw), nil
	}
	return parsed.Answer, nil
}

func (e *Engine) detectContradictions(ctx context.Context, citations []model.Citation) ([]model.Contradiction, error) {
	var claims strings.Builder
	for _, c := range citations {
		fmt.Fprintf(&claims, "[%d] %s\n", c.Index, c.Snippet)
	}
	prompt := fmt.Sprintf(contradictionPromptTemplate, claims.String())
	raw, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	parsed, err := llm.ParseJSON[contradictionResponse](raw)
	if err != nil {
		return nil, err
	}

	valid := func(idx int) bool { return idx >= 1 && idx <= len(citations) }
	var out []model.Contradiction
	for _, c := range parsed.Contradictions {
		if !valid(c.A) || !valid(c.B) || c.A == c.B {
			continue
		}
		// Contradictions are between sources; two claims from the same
		// document are the author disagreeing with themselves, not a
		// cross-source conflict.
		if citations[c.A-1].DocumentID == citations[c.B-1].DocumentID {
			continue
		}
		out = append(out, model.Contradiction{
			CitationA:   c.A,
			CitationB:   c.B,
			ClaimA:      c.ClaimA,
			ClaimB:      c.ClaimB,
			Explanation: c.Explanation,
		})
	}
	return out, nil
}

// synthesisConfidence combines mean retrieval similarity with a penalty per
// detected contradiction, clamped to [0,1].
func synthesisConfidence(citations []model.Citation, contradictions int) float64 {
	if len(citations) == 0 {
		return 0
	}
	var sum float64
	for _, c := range citations {
		sum += c.Score
	}
	confidence := sum / float64(len(citations))
	confidence -= 0.1 * float64(contradictions)
	return math.Max(0, math.Min(1, confidence))
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func snippet(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
