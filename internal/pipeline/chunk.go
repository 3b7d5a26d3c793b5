package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

// approxCharsPerToken is the fallback estimate when the tiktoken encoding
// cannot be loaded (offline environments).
const approxCharsPerToken = 4

// TokenCounter counts tokens with tiktoken, falling back to a character
// estimate when the encoding is unavailable.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: enc}
}

func (t *TokenCounter) Count(text string) int {
	if t.encoding != nil {
		return len(t.encoding.Encode(text, nil, nil))
	}
	n := (len(text) + approxCharsPerToken - 1) / approxCharsPerToken
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// ChunkConfig bounds chunk sizes in tokens.
type ChunkConfig struct {
	ChunkTokens       int
	OverlapTokens     int
	ParentChunkTokens int
}

// Chunker splits normalized text into overlapping token-bounded chunks and
// groups consecutive chunks under parent chunks for extraction context.
type Chunker struct {
	config  ChunkConfig
	counter *TokenCounter
}

func NewChunker(cfg ChunkConfig, counter *TokenCounter) (*Chunker, error) {
	if cfg.ChunkTokens <= 0 {
		return nil, fmt.Errorf("ChunkTokens must be positive, got %d", cfg.ChunkTokens)
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.ChunkTokens {
		return nil, fmt.Errorf("OverlapTokens must be in [0, ChunkTokens), got %d", cfg.OverlapTokens)
	}
	if cfg.ParentChunkTokens < cfg.ChunkTokens {
		cfg.ParentChunkTokens = cfg.ChunkTokens * 4
	}
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &Chunker{config: cfg, counter: counter}, nil
}

var sentenceEnd = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// splitSentences breaks text into sentence-ish units, falling back to
// newline splits for text without terminal punctuation.
func splitSentences(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		matches := sentenceEnd.FindAllStringSubmatch(para, -1)
		consumed := 0
		for _, m := range matches {
			s := strings.TrimSpace(m[1])
			if s != "" {
				out = append(out, s)
			}
			consumed += len(m[0])
		}
		if rest := strings.TrimSpace(para[consumed:]); rest != "" {
			out = append(out, rest)
		}
	}
	return out
}

// Run produces the document's ordered chunks and parent chunks. It never
// emits an empty chunk; a document with no usable text is a validation
// error.
func (c *Chunker) Run(parsed model.ParsedText) (model.ChunkSet, error) {
	sentences := splitSentences(parsed.Text)
	if len(sentences) == 0 {
		return model.ChunkSet{}, &taskerr.Error{Kind: taskerr.KindValidation, Err: taskerr.ErrEmptyDocument}
	}

	tokens := make([]int, len(sentences))
	for i, s := range sentences {
		tokens[i] = c.counter.Count(s)
	}

	set := model.ChunkSet{
		DocumentID: parsed.DocumentID,
		ModuleID:   parsed.ModuleID,
		Title:      parsed.Title,
	}

	start := 0
	for start < len(sentences) {
		end := start
		total := 0
		for end < len(sentences) && (total == 0 || total+tokens[end] <= c.config.ChunkTokens) {
			total += tokens[end]
			end++
		}

		idx := len(set.Chunks)
		text := strings.Join(sentences[start:end], " ")
		set.Chunks = append(set.Chunks, model.Chunk{
			ID:         chunkID(parsed.DocumentID, idx),
			DocumentID: parsed.DocumentID,
			Index:      idx,
			Text:       text,
			TokenCount: total,
		})

		if end >= len(sentences) {
			break
		}

		// Back up whole sentences worth of overlap for the next chunk.
		next := end
		overlap := 0
		for next > start+1 && overlap+tokens[next-1] <= c.config.OverlapTokens {
			next--
			overlap += tokens[next]
		}
		start = next
	}

	set.Parents = c.groupParents(parsed.DocumentID, set.Chunks)
	return set, nil
}

// groupParents packs consecutive chunks into parent chunks bounded by
// ParentChunkTokens and stamps each chunk with its parent id.
func (c *Chunker) groupParents(documentID string, chunks []model.Chunk) []model.ParentChunk {
	var parents []model.ParentChunk
	var texts []string
	var members []int
	total := 0

	flush := func() {
		if len(texts) == 0 {
			return
		}
		idx := len(parents)
		id := parentChunkID(documentID, idx)
		parents = append(parents, model.ParentChunk{
			ID:         id,
			DocumentID: documentID,
			Index:      idx,
			Text:       strings.Join(texts, " "),
			TokenCount: total,
		})
		for _, ci := range members {
			chunks[ci].ParentID = id
		}
		texts = nil
		members = nil
		total = 0
	}

	for i, ch := range chunks {
		if total > 0 && total+ch.TokenCount > c.config.ParentChunkTokens {
			flush()
		}
		texts = append(texts, ch.Text)
		members = append(members, i)
		total += ch.TokenCount
	}
	flush()
	return parents
}

// Chunk ids are content-position derived so re-ingesting the same document
// upserts the same nodes instead of duplicating them.
func chunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s#chunk#%d", documentID, index)).String()
}

func parentChunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s#parent#%d", documentID, index)).String()
}
