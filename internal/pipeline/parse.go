package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

// FileStore is the external document-storage collaborator that serves raw
// file bytes by document id.
type FileStore interface {
	Fetch(ctx context.Context, documentID string) (filename string, data []byte, err error)
}

// Parser normalizes one document format into plain text.
type Parser interface {
	Parse(content []byte) (string, error)
	MimeType() string
}

// ParserRegistry maps MIME types to parsers.
type ParserRegistry struct {
	parsers map[string]Parser
}

func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{parsers: make(map[string]Parser)}
	r.Register(&markdownParser{})
	r.Register(&plainTextParser{})
	r.Register(&htmlParser{})
	return r
}

func (r *ParserRegistry) Register(p Parser) {
	r.parsers[p.MimeType()] = p
}

// Parse resolves a parser from the filename extension and normalizes the
// content. Unrecognized formats are a validation error and never retried.
func (r *ParserRegistry) Parse(filename string, content []byte) (string, string, error) {
	mimeType := MimeTypeFromExtension(filepath.Ext(filename))
	p, ok := r.parsers[mimeType]
	if !ok {
		return "", "", &taskerr.Error{
			Kind: taskerr.KindValidation,
			Err:  fmt.Errorf("%w: %s", taskerr.ErrUnsupportedFormat, filepath.Ext(filename)),
		}
	}
	text, err := p.Parse(content)
	if err != nil {
		return "", "", err
	}
	text = normalizeWhitespace(text)
	if text == "" {
		return "", "", &taskerr.Error{Kind: taskerr.KindValidation, Err: taskerr.ErrEmptyDocument}
	}
	return text, mimeType, nil
}

// MimeTypeFromExtension returns the MIME type for a file extension.
func MimeTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt", ".text":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}

type plainTextParser struct{}

func (p *plainTextParser) MimeType() string { return "text/plain" }

func (p *plainTextParser) Parse(content []byte) (string, error) {
	return string(content), nil
}

// markdownParser strips markup down to readable text while keeping heading
// and list structure as plain lines.
type markdownParser struct{}

func (p *markdownParser) MimeType() string { return "text/markdown" }

var (
	mdCodeFence = regexp.MustCompile("(?s)```.*?```")
	mdInline    = regexp.MustCompile("[*_`~]+")
	mdHeading   = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	mdLink      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdImage     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
)

func (p *markdownParser) Parse(content []byte) (string, error) {
	text := string(content)
	text = mdCodeFence.ReplaceAllString(text, "")
	text = mdImage.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdInline.ReplaceAllString(text, "")
	return text, nil
}

// htmlParser removes tags and decodes the most common entities.
type htmlParser struct{}

func (p *htmlParser) MimeType() string { return "text/html" }

var (
	htmlScript = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTag    = regexp.MustCompile(`(?s)<[^>]+>`)
)

var htmlEntities = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">",
	"&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
)

func (p *htmlParser) Parse(content []byte) (string, error) {
	text := string(content)
	text = htmlScript.ReplaceAllString(text, "")
	text = htmlTag.ReplaceAllString(text, " ")
	return htmlEntities.Replace(text), nil
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ParseStage fetches the raw document and normalizes it to plain text.
type ParseStage struct {
	Files    FileStore
	Registry *ParserRegistry
}

func (s *ParseStage) Run(ctx context.Context, documentID, moduleID string) (model.ParsedText, error) {
	filename, data, err := s.Files.Fetch(ctx, documentID)
	if err != nil {
		if errors.Is(err, taskerr.ErrDocumentNotFound) {
			return model.ParsedText{}, &taskerr.Error{Kind: taskerr.KindValidation, Err: err}
		}
		return model.ParsedText{}, taskerr.Transient(fmt.Errorf("fetch document %s: %w", documentID, err))
	}

	text, mimeType, err := s.Registry.Parse(filename, data)
	if err != nil {
		return model.ParsedText{}, err
	}

	return model.ParsedText{
		DocumentID: documentID,
		ModuleID:   moduleID,
		Title:      titleFromFilename(filename),
		MimeType:   mimeType,
		Text:       text,
	}, nil
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
