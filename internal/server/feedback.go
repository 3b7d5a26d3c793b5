package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/notegraph/notegraph/internal/feedback"
)

func (s *Server) FeedbackResult(c *gin.Context) {
	var req feedback.ResultFeedback
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.Feedback.SubmitResult(req)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": entry.ID})
}

func (s *Server) FeedbackAnswer(c *gin.Context) {
	var req feedback.AnswerFeedback
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.Feedback.SubmitAnswer(req)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": entry.ID})
}

func (s *Server) FeedbackImplicit(c *gin.Context) {
	var req feedback.ImplicitFeedback
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.Feedback.SubmitImplicit(req)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": entry.ID})
}

// FeedbackStats aggregates the log, scoped to one module when a module_id
// query parameter is present.
func (s *Server) FeedbackStats(c *gin.Context) {
	stats, err := s.Feedback.Stats(c.Query("module_id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) FeedbackLowQuality(c *gin.Context) {
	threshold := 0.4
	minCount := 1
	limit := 20

	var err error
	if v := c.Query("threshold"); v != "" {
		if threshold, err = strconv.ParseFloat(v, 64); err != nil || threshold < 0 || threshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be in [0,1]"})
			return
		}
	}
	if v := c.Query("min_count"); v != "" {
		if minCount, err = strconv.Atoi(v); err != nil || minCount < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_count must be a positive integer"})
			return
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
	}

	results, err := s.Feedback.LowQuality(threshold, minCount, limit)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}
