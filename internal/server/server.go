// Package server exposes the HTTP API: ingestion task management, hybrid
// search, multi-document synthesis, graph inspection and feedback.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notegraph/notegraph/internal/driver"
	"github.com/notegraph/notegraph/internal/feedback"
	"github.com/notegraph/notegraph/internal/graph"
	"github.com/notegraph/notegraph/internal/metrics"
	"github.com/notegraph/notegraph/internal/orchestrator"
	"github.com/notegraph/notegraph/internal/query"
	"github.com/notegraph/notegraph/internal/taskerr"
)

type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Query        *query.Engine
	Graph        *graph.Adapter
	Feedback     *feedback.Service
	Driver       driver.GraphDriver
	Files        DocumentUploader
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
	Logger       *slog.Logger
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))

	r.PUT("/documents/:id", s.UploadDocument)
	r.GET("/documents/:id", s.GetDocument)
	r.POST("/ingest", s.SubmitIngest)
	r.GET("/ingest/tasks/:id", s.TaskStatus)
	r.POST("/ingest/tasks/:id/cancel", s.CancelTask)

	r.POST("/search", s.Search)
	r.POST("/query/documents", s.Synthesize)

	r.GET("/graph/schema", s.GraphSchema)
	r.GET("/graph/subgraph", s.GraphSubgraph)

	r.POST("/feedback/result", s.FeedbackResult)
	r.POST("/feedback/answer", s.FeedbackAnswer)
	r.POST("/feedback/implicit", s.FeedbackImplicit)
	r.GET("/feedback/stats", s.FeedbackStats)
	r.GET("/feedback/low-quality", s.FeedbackLowQuality)

	return r
}

// abortWithError translates the error taxonomy into HTTP status codes.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, taskerr.ErrTaskNotFound), errors.Is(err, taskerr.ErrDocumentNotFound):
		status = http.StatusNotFound
	default:
		switch taskerr.KindOf(err) {
		case taskerr.KindValidation:
			status = http.StatusBadRequest
		case taskerr.KindConflict:
			status = http.StatusConflict
		case taskerr.KindTimeout:
			status = http.StatusGatewayTimeout
		case taskerr.KindTransient:
			status = http.StatusServiceUnavailable
		}
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) Health(c *gin.Context) {
	if err := s.Driver.VerifyConnectivity(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
