package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notegraph/notegraph/internal/taskerr"
)

func TestParseStageMarkdown(t *testing.T) {
	files := &mockFileStore{
		Filename: "week3-notes.md",
		Data: []byte("# Neural Networks\n\nBackpropagation computes *gradients*.\n\n```go\nfmt.Println(\"skipped\")\n```\n\nSee [the paper](https://example.com/paper).\n"),
	}
	stage := &ParseStage{Files: files, Registry: NewParserRegistry()}

	parsed, err := stage.Run(context.Background(), "doc-1", "mod-1")
	assert.NoError(t, err)
	assert.Equal(t, "doc-1", parsed.DocumentID)
	assert.Equal(t, "mod-1", parsed.ModuleID)
	assert.Equal(t, "week3-notes", parsed.Title)
	assert.Equal(t, "text/markdown", parsed.MimeType)
	assert.Contains(t, parsed.Text, "Neural Networks")
	assert.Contains(t, parsed.Text, "Backpropagation computes gradients.")
	assert.Contains(t, parsed.Text, "See the paper.")
	assert.NotContains(t, parsed.Text, "```")
	assert.NotContains(t, parsed.Text, "fmt.Println")
	assert.NotContains(t, parsed.Text, "https://example.com")
}

func TestParseStageHTML(t *testing.T) {
	files := &mockFileStore{
		Filename: "lecture.html",
		Data:     []byte("<html><head><style>body{}</style></head><body><h1>Sorting</h1><p>Quicksort &amp; mergesort.</p><script>alert(1)</script></body></html>"),
	}
	stage := &ParseStage{Files: files, Registry: NewParserRegistry()}

	parsed, err := stage.Run(context.Background(), "doc-1", "mod-1")
	assert.NoError(t, err)
	assert.Contains(t, parsed.Text, "Sorting")
	assert.Contains(t, parsed.Text, "Quicksort & mergesort.")
	assert.NotContains(t, parsed.Text, "alert")
	assert.NotContains(t, parsed.Text, "<p>")
}

func TestParseStageUnsupportedFormat(t *testing.T) {
	files := &mockFileStore{Filename: "slides.pptx", Data: []byte("binary")}
	stage := &ParseStage{Files: files, Registry: NewParserRegistry()}

	_, err := stage.Run(context.Background(), "doc-1", "mod-1")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, taskerr.ErrUnsupportedFormat))
	// Validation errors must not be retried.
	assert.Equal(t, taskerr.KindValidation, taskerr.KindOf(err))
	assert.False(t, taskerr.Retryable(err))
}

func TestParseStageEmptyDocument(t *testing.T) {
	files := &mockFileStore{Filename: "empty.txt", Data: []byte("   \n\n  ")}
	stage := &ParseStage{Files: files, Registry: NewParserRegistry()}

	_, err := stage.Run(context.Background(), "doc-1", "mod-1")
	assert.True(t, errors.Is(err, taskerr.ErrEmptyDocument))
	assert.Equal(t, taskerr.KindValidation, taskerr.KindOf(err))
}

func TestParseStageMissingDocument(t *testing.T) {
	files := &mockFileStore{Err: taskerr.ErrDocumentNotFound}
	stage := &ParseStage{Files: files, Registry: NewParserRegistry()}

	_, err := stage.Run(context.Background(), "doc-1", "mod-1")
	assert.True(t, errors.Is(err, taskerr.ErrDocumentNotFound))
	assert.Equal(t, taskerr.KindValidation, taskerr.KindOf(err))
}

func TestParseStageFetchFailureIsTransient(t *testing.T) {
	files := &mockFileStore{Err: errors.New("connection refused")}
	stage := &ParseStage{Files: files, Registry: NewParserRegistry()}

	_, err := stage.Run(context.Background(), "doc-1", "mod-1")
	assert.Equal(t, taskerr.KindTransient, taskerr.KindOf(err))
	assert.True(t, taskerr.Retryable(err))
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "line one  \r\nline two\t\n\n\n\n\nline three"
	assert.Equal(t, "line one\nline two\n\nline three", normalizeWhitespace(in))
}
