package model

import "time"

// FeedbackType discriminates the three feedback submission kinds.
type FeedbackType string

const (
	FeedbackResult   FeedbackType = "result"
	FeedbackAnswer   FeedbackType = "answer"
	FeedbackImplicit FeedbackType = "implicit"
)

// FeedbackEntry is one append-only log record. Fields beyond the common set
// are populated per type; prior entries are never mutated.
type FeedbackEntry struct {
	ID        string       `json:"id"`
	Type      FeedbackType `json:"type"`
	Query     string       `json:"query"`
	ModuleID  string       `json:"module_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`

	// Result feedback
	ResultID       string  `json:"result_id,omitempty"`
	ResultRank     int     `json:"result_rank,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	Comment        string  `json:"comment,omitempty"`

	// Answer feedback
	AnswerHash    string  `json:"answer_hash,omitempty"`
	Helpful       *bool   `json:"helpful,omitempty"`
	AccuracyScore float64 `json:"accuracy_score,omitempty"`

	// Implicit feedback
	Signal      string `json:"signal,omitempty"` // click | dwell
	DwellTimeMs int64  `json:"dwell_time_ms,omitempty"`
}

// FeedbackStats is the aggregation computed over the append-only log.
type FeedbackStats struct {
	TotalCount       int                  `json:"total_count"`
	PositiveRatio    float64              `json:"positive_ratio"`
	AverageRelevance float64              `json:"average_relevance"`
	ByType           map[FeedbackType]int `json:"by_type"`
	ByModule         map[string]int       `json:"by_module"`
}

// LowQualityResult identifies a result whose rolling average relevance fell
// below the review threshold.
type LowQualityResult struct {
	ResultID         string   `json:"result_id"`
	AverageRelevance float64  `json:"average_relevance"`
	FeedbackCount    int      `json:"feedback_count"`
	Queries          []string `json:"queries"`
}
