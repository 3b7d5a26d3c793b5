package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/model"
)

const expansionPromptTemplate = `Given a search query, suggest up to %d closely related terms or short phrases
that would help find relevant passages the query itself might miss. Prefer
synonyms, domain terminology and abbreviation expansions. Do not repeat words
already in the query.

Query: %s

Respond with JSON only, no other text:
{"terms": ["term1", "term2"]}`

type expansionResponse struct {
	Terms []string `json:"terms"`
}

// expandQuery asks the LLM for related terms. Expansion is best-effort: any
// failure logs and returns nil so the search proceeds on the original query.
func (e *Engine) expandQuery(ctx context.Context, query string) *model.ExpansionInfo {
	if e.LLM == nil {
		return nil
	}
	prompt := fmt.Sprintf(expansionPromptTemplate, e.cfg.MaxExpansionTerms, query)
	raw, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("query expansion failed", "err", err)
		return nil
	}
	parsed, err := llm.ParseJSON[expansionResponse](raw)
	if err != nil {
		e.logger.Warn("query expansion returned unparseable output", "err", err)
		return nil
	}

	info := &model.ExpansionInfo{OriginalQuery: query}
	lowerQuery := strings.ToLower(query)
	for _, term := range parsed.Terms {
		term = strings.TrimSpace(term)
		if term == "" || strings.Contains(lowerQuery, strings.ToLower(term)) {
			continue
		}
		info.Terms = append(info.Terms, model.WeightedTerm{
			Term:   term,
			Weight: e.cfg.MinTermWeight,
		})
		if len(info.Terms) >= e.cfg.MaxExpansionTerms {
			break
		}
	}
	return info
}

// buildFulltextQuery appends expansion terms with Lucene boost syntax so
// expanded terms never outrank original query words. The base query is
// expected to be sanitized already.
func buildFulltextQuery(query string, terms []model.WeightedTerm) string {
	parts := make([]string, 0, len(terms)+1)
	if query != "" {
		parts = append(parts, query)
	}
	for _, t := range terms {
		escaped := luceneEscape(t.Term)
		if escaped == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s^%.2f", escaped, t.Weight))
	}
	return strings.Join(parts, " ")
}

// sanitizeFulltext strips Lucene syntax from user input so a query like
// "foo AND (" reaches the index as plain terms instead of a parse error.
// Standalone operator keywords are lowercased; the analyzer matches them
// case-insensitively as ordinary terms.
func sanitizeFulltext(query string) string {
	fields := strings.Fields(strings.Map(blankLuceneSyntax, query))
	for i, f := range fields {
		switch f {
		case "AND", "OR", "NOT":
			fields[i] = strings.ToLower(f)
		}
	}
	return strings.Join(fields, " ")
}

func blankLuceneSyntax(r rune) rune {
	switch r {
	case '+', '-', '&', '|', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/':
		return ' '
	}
	return r
}

// luceneEscape quotes phrases and strips characters that are syntax in the
// Lucene query language.
func luceneEscape(term string) string {
	cleaned := strings.Join(strings.Fields(strings.Map(blankLuceneSyntax, term)), " ")
	if strings.Contains(cleaned, " ") {
		return `"` + cleaned + `"`
	}
	return cleaned
}
