package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ingestRequest struct {
	DocumentID  string `json:"document_id" binding:"required"`
	ModuleID    string `json:"module_id" binding:"required"`
	RequesterID string `json:"requester_id"`
}

// SubmitIngest accepts a document for asynchronous processing and returns the
// task id immediately. A document already in flight is rejected with 409.
func (s *Server) SubmitIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID, err := s.Orchestrator.Submit(c.Request.Context(), req.DocumentID, req.ModuleID, req.RequesterID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"task_id":    taskID,
		"state":      "PENDING",
		"status_url": "/ingest/tasks/" + taskID,
	})
}

// TaskStatus reports a task in Celery-compatible terms. Internal stage states
// collapse to STARTED; a retrying task reports RETRY until it settles.
func (s *Server) TaskStatus(c *gin.Context) {
	task, err := s.Orchestrator.GetStatus(c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	resp := gin.H{
		"task_id":    task.ID,
		"state":      task.ExternalState(),
		"stage":      task.State,
		"progress":   task.Progress,
		"attempts":   task.Attempts,
		"created_at": task.CreatedAt,
		"updated_at": task.UpdatedAt,
	}
	if task.Result != nil {
		resp["result"] = task.Result
	}
	if task.ErrorMsg != "" {
		resp["error"] = task.ErrorMsg
		resp["error_kind"] = task.ErrorKind
	}
	c.JSON(http.StatusOK, resp)
}

// CancelTask requests cooperative cancellation. The running stage completes;
// the task stops before the next one.
func (s *Server) CancelTask(c *gin.Context) {
	if err := s.Orchestrator.Cancel(c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": c.Param("id"), "state": "REVOKED"})
}
