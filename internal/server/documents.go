package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DocumentUploader stores raw document bytes so the ingest pipeline can fetch
// them later by id.
type DocumentUploader interface {
	Put(documentID, filename string, data []byte) error
}

// UploadDocument accepts a raw document body. The filename query parameter
// supplies the extension that picks the parser at ingest time.
func (s *Server) UploadDocument(c *gin.Context) {
	documentID := c.Param("id")
	filename := c.Query("filename")
	if filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename query parameter is required"})
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must not be empty"})
		return
	}

	if err := s.Files.Put(documentID, filename, data); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document_id": documentID, "size": len(data)})
}

// GetDocument reports a document's ingestion status together with its graph
// footprint.
func (s *Server) GetDocument(c *gin.Context) {
	doc, err := s.Graph.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	chunks, parents, err := s.Graph.DocumentGraphCounts(c.Request.Context(), doc.ID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document":      doc,
		"chunks":        chunks,
		"parent_chunks": parents,
	})
}
