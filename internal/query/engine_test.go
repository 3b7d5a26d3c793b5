package query

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/notegraph/notegraph/internal/config"
	"github.com/notegraph/notegraph/internal/driver"
	"github.com/notegraph/notegraph/internal/graph"
	"github.com/notegraph/notegraph/internal/metrics"
	"github.com/notegraph/notegraph/internal/model"
)

type scriptedDriver struct {
	Queries []string
	Params  []map[string]interface{}
	Results map[string]neo4j.EagerResult
	Err     error
}

func (d *scriptedDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	d.Queries = append(d.Queries, query)
	d.Params = append(d.Params, params)
	if d.Err != nil {
		return neo4j.EagerResult{}, d.Err
	}
	return d.Results[query], nil
}

func (d *scriptedDriver) BuildIndices(ctx context.Context) error       { return nil }
func (d *scriptedDriver) VerifyConnectivity(ctx context.Context) error { return nil }
func (d *scriptedDriver) Close(ctx context.Context) error              { return nil }

type mockEmbedder struct {
	Vector []float32
	Err    error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.Vector
	}
	return out, nil
}

type mockLLM struct {
	Response      string
	ResponseQueue []string
	Prompts       []string
	Err           error
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}

func searchRec(id, text string, score float64, createdAt time.Time) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"id", "text", "document_id", "document_title", "module_id", "score", "created_at"},
		Values: []interface{}{id, text, "doc-1", "notes", "mod-1", score, createdAt},
	}
}

func newTestEngine(d *scriptedDriver, llmClient *mockLLM) *Engine {
	cfg := config.Default().Search
	m := metrics.New(prometheus.NewRegistry())
	e := NewEngine(graph.NewAdapter(d, slog.Default()), &mockEmbedder{Vector: []float32{0.1, 0.2}}, nil, cfg, m, slog.Default())
	if llmClient != nil {
		e.LLM = llmClient
	}
	return e
}

func TestNormalizeWeights(t *testing.T) {
	// Equivalent ratios normalize identically.
	assert.Equal(t, normalizeWeights(2, 2, 0.7, 0.3), normalizeWeights(0.5, 0.5, 0.7, 0.3))
	assert.Equal(t, Weights{Vector: 0.5, Fulltext: 0.5}, normalizeWeights(2, 2, 0.7, 0.3))

	// Zero weights fall back to configured defaults.
	w := normalizeWeights(0, 0, 0.7, 0.3)
	assert.InDelta(t, 0.7, w.Vector, 1e-9)
	assert.InDelta(t, 0.3, w.Fulltext, 1e-9)

	// One-sided weights are allowed.
	w = normalizeWeights(1, 0, 0.7, 0.3)
	assert.Equal(t, Weights{Vector: 1, Fulltext: 0}, w)
}

func TestMergeAndRankCombinesScores(t *testing.T) {
	now := time.Now()
	vector := []model.SearchResult{
		{ID: "a", VectorScore: 0.9, CreatedAt: now},
		{ID: "b", VectorScore: 0.5, CreatedAt: now},
	}
	fulltext := []model.SearchResult{
		{ID: "b", FulltextScore: 8.0, CreatedAt: now},
		{ID: "c", FulltextScore: 4.0, CreatedAt: now},
	}

	results := mergeAndRank(vector, fulltext, Weights{Vector: 0.5, Fulltext: 0.5}, 10)
	assert.Len(t, results, 3)

	// b appears in both legs: fulltext normalized to 1.0, combined 0.75.
	assert.Equal(t, "b", results[0].ID)
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
	// a: vector only, 0.45.
	assert.Equal(t, "a", results[1].ID)
	// c: fulltext only, normalized 0.5, combined 0.25.
	assert.Equal(t, "c", results[2].ID)
	assert.InDelta(t, 0.25, results[2].Score, 1e-9)
}

func TestMergeAndRankTieBreaks(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// Same combined score, different raw vector score.
	results := mergeAndRank(
		[]model.SearchResult{
			{ID: "low-vec", VectorScore: 0.4, CreatedAt: newer},
			{ID: "high-vec", VectorScore: 0.8, CreatedAt: older},
		},
		[]model.SearchResult{
			{ID: "low-vec", FulltextScore: 8.0, CreatedAt: newer},
			{ID: "high-vec", FulltextScore: 4.0, CreatedAt: older},
		},
		Weights{Vector: 0.5, Fulltext: 0.5}, 10)
	// low-vec: 0.5*0.4 + 0.5*1.0 = 0.7; high-vec: 0.5*0.8 + 0.5*0.5 = 0.65
	assert.Equal(t, "low-vec", results[0].ID)

	// Exact tie on combined and vector score: recency wins.
	results = mergeAndRank(
		[]model.SearchResult{
			{ID: "old", VectorScore: 0.6, CreatedAt: older},
			{ID: "new", VectorScore: 0.6, CreatedAt: newer},
		},
		nil, Weights{Vector: 1, Fulltext: 0}, 10)
	assert.Equal(t, "new", results[0].ID)
	assert.Equal(t, "old", results[1].ID)

	// Full tie falls back to id so ordering stays total and deterministic.
	results = mergeAndRank(
		[]model.SearchResult{
			{ID: "zz", VectorScore: 0.6, CreatedAt: older},
			{ID: "aa", VectorScore: 0.6, CreatedAt: older},
		},
		nil, Weights{Vector: 1, Fulltext: 0}, 10)
	assert.Equal(t, "aa", results[0].ID)
}

func TestMergeAndRankTruncatesToTopK(t *testing.T) {
	var vector []model.SearchResult
	for i := 0; i < 10; i++ {
		vector = append(vector, model.SearchResult{ID: string(rune('a' + i)), VectorScore: float64(10-i) / 10})
	}
	results := mergeAndRank(vector, nil, Weights{Vector: 1}, 3)
	assert.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
}

func TestSearchRanksAndAttaches(t *testing.T) {
	now := time.Now().UTC()
	d := &scriptedDriver{Results: map[string]neo4j.EagerResult{
		driver.VectorSearchQuery: {Records: []*neo4j.Record{
			searchRec("c1", "entropy chunk", 0.9, now),
		}},
		driver.FulltextSearchQuery: {Records: []*neo4j.Record{
			searchRec("c2", "other chunk", 2.0, now),
		}},
		driver.ChunkEntitiesQuery: {Records: []*neo4j.Record{
			{
				Keys:   []string{"chunk_id", "id", "name", "type", "confidence"},
				Values: []interface{}{"c1", "e1", "Entropy", "Concept", 0.9},
			},
		}},
	}}
	e := newTestEngine(d, nil)

	resp, err := e.Search(context.Background(), SearchParams{Query: "entropy", TopK: 5})
	assert.NoError(t, err)
	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, "c1", resp.Results[0].ID)
	assert.Len(t, resp.Results[0].Entities, 1)
	assert.Equal(t, "Entropy", resp.Results[0].Entities[0].Name)
	assert.Empty(t, resp.Results[1].Entities)
	assert.InDelta(t, 0.7, resp.Weights.Vector, 1e-9)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	e := newTestEngine(&scriptedDriver{}, nil)
	_, err := e.Search(context.Background(), SearchParams{})
	assert.Error(t, err)
}

func TestSearchExpansionOnlyAffectsFulltext(t *testing.T) {
	d := &scriptedDriver{Results: map[string]neo4j.EagerResult{}}
	llmClient := &mockLLM{Response: `{"terms": ["statistical mechanics", "disorder"]}`}
	e := newTestEngine(d, llmClient)

	resp, err := e.Search(context.Background(), SearchParams{Query: "entropy", QueryExpansion: true})
	assert.NoError(t, err)
	assert.NotNil(t, resp.ExpansionInfo)
	assert.Len(t, resp.ExpansionInfo.Terms, 2)

	var fulltextQuery, vectorQuery bool
	for i, q := range d.Queries {
		switch q {
		case driver.FulltextSearchQuery:
			fulltextQuery = true
			assert.Contains(t, d.Params[i]["query"], "entropy")
			assert.Contains(t, d.Params[i]["query"], `"statistical mechanics"^0.50`)
		case driver.VectorSearchQuery:
			vectorQuery = true
			// Vector leg embeds the original query; there is no query
			// string parameter to expand.
			assert.NotContains(t, d.Params[i], "query")
		}
	}
	assert.True(t, fulltextQuery)
	assert.True(t, vectorQuery)
}

func TestSearchExpansionFailureIsNonFatal(t *testing.T) {
	d := &scriptedDriver{Results: map[string]neo4j.EagerResult{}}
	llmClient := &mockLLM{Response: "no json here"}
	e := newTestEngine(d, llmClient)

	resp, err := e.Search(context.Background(), SearchParams{Query: "entropy", QueryExpansion: true})
	assert.NoError(t, err)
	assert.Nil(t, resp.ExpansionInfo)
}

func TestSearchSanitizesFulltextQuery(t *testing.T) {
	d := &scriptedDriver{Results: map[string]neo4j.EagerResult{}}
	e := newTestEngine(d, nil)

	// A dangling operator and open paren would be a Lucene parse error if
	// passed through verbatim.
	_, err := e.Search(context.Background(), SearchParams{Query: "foo AND ("})
	assert.NoError(t, err)

	var sawFulltext bool
	for i, q := range d.Queries {
		if q == driver.FulltextSearchQuery {
			sawFulltext = true
			assert.Equal(t, "foo and", d.Params[i]["query"])
		}
	}
	assert.True(t, sawFulltext)
}

func TestSearchSkipsFulltextWhenQueryIsAllSyntax(t *testing.T) {
	d := &scriptedDriver{Results: map[string]neo4j.EagerResult{}}
	e := newTestEngine(d, nil)

	resp, err := e.Search(context.Background(), SearchParams{Query: "((("})
	assert.NoError(t, err)
	assert.Zero(t, resp.TotalCount)

	// The vector leg still ran; the fulltext leg was skipped rather than
	// sent an empty Lucene query.
	assert.Contains(t, d.Queries, driver.VectorSearchQuery)
	assert.NotContains(t, d.Queries, driver.FulltextSearchQuery)
}

func TestSanitizeFulltext(t *testing.T) {
	assert.Equal(t, "foo and", sanitizeFulltext("foo AND ("))
	assert.Equal(t, "plain words", sanitizeFulltext("plain words"))
	assert.Equal(t, "", sanitizeFulltext("((("))
	// Only standalone operator keywords are neutralized.
	assert.Equal(t, "Anderson not OR2", sanitizeFulltext("Anderson NOT OR2"))
}

func TestBuildFulltextQuery(t *testing.T) {
	q := buildFulltextQuery("entropy", []model.WeightedTerm{
		{Term: "disorder", Weight: 0.5},
		{Term: "statistical mechanics", Weight: 0.5},
	})
	assert.Equal(t, `entropy disorder^0.50 "statistical mechanics"^0.50`, q)
}

func TestLuceneEscape(t *testing.T) {
	assert.Equal(t, `"foo bar"`, luceneEscape("foo:bar"))
	assert.Equal(t, `"big o notation"`, luceneEscape("big-o notation"))
	assert.Equal(t, "plain", luceneEscape("plain"))
}
