// Package query implements the hybrid query engine: weighted vector plus
// fulltext ranking, bounded query and graph expansion, and multi-document
// synthesis with citations and contradiction detection.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/notegraph/notegraph/internal/config"
	"github.com/notegraph/notegraph/internal/graph"
	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/metrics"
	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

type Engine struct {
	Graph    *graph.Adapter
	Embedder llm.EmbedderClient
	LLM      llm.LLMClient
	cfg      config.SearchConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewEngine(g *graph.Adapter, embedder llm.EmbedderClient, llmClient llm.LLMClient, cfg config.SearchConfig, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Graph: g, Embedder: embedder, LLM: llmClient, cfg: cfg, metrics: m, logger: logger}
}

// SearchParams carries one search request. Zero weights fall back to the
// configured defaults; non-normalized weights are scaled to sum to 1.
type SearchParams struct {
	Query          string
	ModuleIDs      []string
	TopK           int
	VectorWeight   float64
	FulltextWeight float64
	QueryExpansion bool
	GraphExpansion bool
}

type Weights struct {
	Vector   float64 `json:"vector"`
	Fulltext float64 `json:"fulltext"`
}

type SearchResponse struct {
	Query         string               `json:"query"`
	Results       []model.SearchResult `json:"results"`
	TotalCount    int                  `json:"total_count"`
	SearchTimeMs  int64                `json:"search_time_ms"`
	Weights       Weights              `json:"weights"`
	ExpansionInfo *model.ExpansionInfo `json:"expansion_info,omitempty"`
	GraphContext  *model.GraphContext  `json:"graph_context,omitempty"`
}

// Search runs the hybrid retrieval algorithm. Ranking is deterministic:
// identical query, weights and corpus state produce identical order.
func (e *Engine) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	start := time.Now()

	if params.Query == "" {
		return nil, taskerr.Validation("query must not be empty")
	}
	topK := params.TopK
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}
	weights := normalizeWeights(params.VectorWeight, params.FulltextWeight,
		e.cfg.VectorWeight, e.cfg.FulltextWeight)

	resp := &SearchResponse{Query: params.Query, Weights: weights}

	// Query expansion broadens fulltext recall only; the vector leg always
	// embeds the original query text. The fulltext leg gets a sanitized
	// copy so stray Lucene syntax in user input cannot fail the search.
	fulltextQuery := sanitizeFulltext(params.Query)
	if params.QueryExpansion {
		info := e.expandQuery(ctx, params.Query)
		if info != nil && len(info.Terms) > 0 {
			resp.ExpansionInfo = info
			fulltextQuery = buildFulltextQuery(fulltextQuery, info.Terms)
		}
	}

	candidateK := topK * e.cfg.CandidateMultiplier
	if candidateK < topK {
		candidateK = topK
	}

	embedding, err := e.Embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectorHits, err := e.Graph.VectorSearch(ctx, embedding, candidateK, params.ModuleIDs)
	if err != nil {
		return nil, err
	}
	// A query made entirely of syntax sanitizes to nothing; the vector leg
	// still carries the search.
	var fulltextHits []model.SearchResult
	if fulltextQuery != "" {
		fulltextHits, err = e.Graph.FulltextSearch(ctx, fulltextQuery, candidateK, params.ModuleIDs)
		if err != nil {
			return nil, err
		}
	}

	results := mergeAndRank(vectorHits, fulltextHits, weights, topK)

	// Attach each result's entities for citation and expansion use.
	if len(results) > 0 {
		chunkIDs := make([]string, len(results))
		for i, r := range results {
			chunkIDs[i] = r.ID
		}
		entities, err := e.Graph.EntitiesForChunks(ctx, chunkIDs)
		if err != nil {
			e.logger.Warn("failed to load result entities", "err", err)
		} else {
			for i := range results {
				results[i].Entities = entities[results[i].ID]
			}
		}
	}

	// Graph expansion attaches neighborhood context without touching the
	// ranking order.
	if params.GraphExpansion && len(results) > 0 {
		seen := map[string]bool{}
		var seeds []string
		for _, r := range results {
			for _, ent := range r.Entities {
				if !seen[ent.ID] {
					seen[ent.ID] = true
					seeds = append(seeds, ent.ID)
				}
			}
		}
		expanded, err := e.Graph.ExpandNeighbors(ctx, seeds, e.cfg.MaxHops, e.cfg.MaxExpandedEntities)
		if err != nil {
			e.logger.Warn("graph expansion failed", "err", err)
		} else if len(expanded) > 0 {
			resp.GraphContext = &model.GraphContext{Entities: expanded, Hops: e.cfg.MaxHops}
		}
	}

	resp.Results = results
	resp.TotalCount = len(results)
	resp.SearchTimeMs = time.Since(start).Milliseconds()
	e.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	return resp, nil
}

// normalizeWeights scales the pair to sum to 1, substituting defaults when
// both are zero or negative.
func normalizeWeights(vector, fulltext, defaultVector, defaultFulltext float64) Weights {
	if vector < 0 {
		vector = 0
	}
	if fulltext < 0 {
		fulltext = 0
	}
	if vector == 0 && fulltext == 0 {
		vector, fulltext = defaultVector, defaultFulltext
	}
	sum := vector + fulltext
	return Weights{Vector: vector / sum, Fulltext: fulltext / sum}
}

// mergeAndRank unions both candidate sets, computes combined scores and
// applies the deterministic tie-break chain: combined score, raw vector
// score, document recency, then id for total order.
func mergeAndRank(vectorHits, fulltextHits []model.SearchResult, weights Weights, topK int) []model.SearchResult {
	merged := make(map[string]*model.SearchResult, len(vectorHits)+len(fulltextHits))

	for _, hit := range vectorHits {
		h := hit
		merged[h.ID] = &h
	}

	// Lucene scores are unbounded; normalize by the max so both legs
	// contribute on a [0,1] scale.
	var maxFulltext float64
	for _, hit := range fulltextHits {
		if hit.FulltextScore > maxFulltext {
			maxFulltext = hit.FulltextScore
		}
	}
	for _, hit := range fulltextHits {
		score := hit.FulltextScore
		if maxFulltext > 0 {
			score /= maxFulltext
		}
		if existing, ok := merged[hit.ID]; ok {
			existing.FulltextScore = score
		} else {
			h := hit
			h.FulltextScore = score
			merged[h.ID] = &h
		}
	}

	results := make([]model.SearchResult, 0, len(merged))
	for _, r := range merged {
		r.Score = weights.Vector*r.VectorScore + weights.Fulltext*r.FulltextScore
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].VectorScore != results[j].VectorScore {
			return results[i].VectorScore > results[j].VectorScore
		}
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
