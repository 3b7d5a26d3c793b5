package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/notegraph/notegraph/internal/query"
)

type searchRequest struct {
	Query          string   `json:"query" binding:"required"`
	ModuleIDs      []string `json:"module_ids"`
	TopK           int      `json:"top_k"`
	VectorWeight   float64  `json:"vector_weight"`
	FulltextWeight float64  `json:"fulltext_weight"`
	QueryExpansion bool     `json:"query_expansion"`
	GraphExpansion bool     `json:"graph_expansion"`
}

func (s *Server) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.Query.Search(c.Request.Context(), query.SearchParams{
		Query:          req.Query,
		ModuleIDs:      req.ModuleIDs,
		TopK:           req.TopK,
		VectorWeight:   req.VectorWeight,
		FulltextWeight: req.FulltextWeight,
		QueryExpansion: req.QueryExpansion,
		GraphExpansion: req.GraphExpansion,
	})
	if err != nil {
		s.Metrics.SearchRequests.WithLabelValues("error").Inc()
		s.abortWithError(c, err)
		return
	}
	s.Metrics.SearchRequests.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, resp)
}

type synthesisRequest struct {
	Query                string   `json:"query" binding:"required"`
	ModuleIDs            []string `json:"module_ids"`
	MaxDocuments         int      `json:"max_documents"`
	MaxChunksPerDocument int      `json:"max_chunks_per_document"`
	DetectContradictions *bool    `json:"detect_contradictions"`
	IncludeEntityContext bool     `json:"include_entity_context"`
	CitationStyle        string   `json:"citation_style"`
}

// Synthesize answers a question across multiple documents with citations.
// Contradiction detection is on unless the request disables it.
func (s *Server) Synthesize(c *gin.Context) {
	var req synthesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	detect := true
	if req.DetectContradictions != nil {
		detect = *req.DetectContradictions
	}

	result, err := s.Query.Synthesize(c.Request.Context(), query.SynthesisParams{
		Query:                req.Query,
		ModuleIDs:            req.ModuleIDs,
		MaxDocuments:         req.MaxDocuments,
		MaxChunksPerDocument: req.MaxChunksPerDocument,
		DetectContradictions: detect,
		IncludeEntityContext: req.IncludeEntityContext,
		CitationStyle:        req.CitationStyle,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) GraphSchema(c *gin.Context) {
	schema, err := s.Graph.Schema(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) GraphSubgraph(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	sub, err := s.Graph.Subgraph(c.Request.Context(), c.QueryArray("module_id"), c.Query("entity_type"), limit)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
