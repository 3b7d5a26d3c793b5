// Package feedback records user feedback on search quality and computes
// aggregate statistics over the append-only log.
package feedback

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notegraph/notegraph/internal/metrics"
	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/internal/taskerr"
)

// Service validates submissions, appends them to the log and serves cached
// aggregations. Stats are recomputed at most once per cache TTL; feedback
// volume is low enough that a full log scan is fine.
type Service struct {
	log      *store.FeedbackLog
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu          sync.Mutex
	cachedStats *model.FeedbackStats
	cachedAt    time.Time
}

func NewService(log *store.FeedbackLog, cacheTTL time.Duration, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{log: log, cacheTTL: cacheTTL, metrics: m, logger: logger}
}

// ResultFeedback rates one search result for one query.
type ResultFeedback struct {
	Query          string  `json:"query" binding:"required"`
	ModuleID       string  `json:"module_id"`
	ResultID       string  `json:"result_id" binding:"required"`
	ResultRank     int     `json:"result_rank"`
	RelevanceScore float64 `json:"relevance_score"`
	Comment        string  `json:"comment"`
}

// AnswerFeedback rates a synthesized answer.
type AnswerFeedback struct {
	Query         string  `json:"query" binding:"required"`
	ModuleID      string  `json:"module_id"`
	AnswerHash    string  `json:"answer_hash" binding:"required"`
	Helpful       *bool   `json:"helpful" binding:"required"`
	AccuracyScore float64 `json:"accuracy_score"`
}

// ImplicitFeedback is a behavioral signal (click or dwell) on a result.
type ImplicitFeedback struct {
	Query       string `json:"query" binding:"required"`
	ModuleID    string `json:"module_id"`
	ResultID    string `json:"result_id" binding:"required"`
	Signal      string `json:"signal" binding:"required"`
	DwellTimeMs int64  `json:"dwell_time_ms"`
}

func (s *Service) SubmitResult(fb ResultFeedback) (*model.FeedbackEntry, error) {
	if fb.RelevanceScore < 0 || fb.RelevanceScore > 1 {
		return nil, taskerr.Validation("relevance_score must be in [0,1], got %f", fb.RelevanceScore)
	}
	entry := s.newEntry(model.FeedbackResult, fb.Query, fb.ModuleID)
	entry.ResultID = fb.ResultID
	entry.ResultRank = fb.ResultRank
	entry.RelevanceScore = fb.RelevanceScore
	entry.Comment = fb.Comment
	return entry, s.append(entry)
}

func (s *Service) SubmitAnswer(fb AnswerFeedback) (*model.FeedbackEntry, error) {
	if fb.AccuracyScore < 0 || fb.AccuracyScore > 1 {
		return nil, taskerr.Validation("accuracy_score must be in [0,1], got %f", fb.AccuracyScore)
	}
	if fb.Helpful == nil {
		return nil, taskerr.Validation("helpful must be provided")
	}
	entry := s.newEntry(model.FeedbackAnswer, fb.Query, fb.ModuleID)
	entry.AnswerHash = fb.AnswerHash
	entry.Helpful = fb.Helpful
	entry.AccuracyScore = fb.AccuracyScore
	return entry, s.append(entry)
}

func (s *Service) SubmitImplicit(fb ImplicitFeedback) (*model.FeedbackEntry, error) {
	if fb.Signal != "click" && fb.Signal != "dwell" {
		return nil, taskerr.Validation("signal must be 'click' or 'dwell', got %q", fb.Signal)
	}
	if fb.Signal == "dwell" && fb.DwellTimeMs <= 0 {
		return nil, taskerr.Validation("dwell signal requires a positive dwell_time_ms")
	}
	entry := s.newEntry(model.FeedbackImplicit, fb.Query, fb.ModuleID)
	entry.ResultID = fb.ResultID
	entry.Signal = fb.Signal
	entry.DwellTimeMs = fb.DwellTimeMs
	return entry, s.append(entry)
}

func (s *Service) newEntry(t model.FeedbackType, query, moduleID string) *model.FeedbackEntry {
	return &model.FeedbackEntry{
		ID:        uuid.NewString(),
		Type:      t,
		Query:     query,
		ModuleID:  moduleID,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Service) append(entry *model.FeedbackEntry) error {
	if err := s.log.Append(entry); err != nil {
		return err
	}
	s.metrics.FeedbackEntries.WithLabelValues(string(entry.Type)).Inc()

	// New entries invalidate the stats cache.
	s.mu.Lock()
	s.cachedStats = nil
	s.mu.Unlock()
	return nil
}

// Stats aggregates the log, optionally scoped to one module. The cache
// covers the unscoped aggregation only; module-scoped requests always scan.
func (s *Service) Stats(moduleID string) (*model.FeedbackStats, error) {
	if moduleID != "" {
		return s.computeStats(moduleID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cachedStats != nil && time.Since(s.cachedAt) < s.cacheTTL {
		return s.cachedStats, nil
	}
	stats, err := s.computeStats("")
	if err != nil {
		return nil, err
	}
	s.cachedStats = stats
	s.cachedAt = time.Now()
	return stats, nil
}

func (s *Service) computeStats(moduleID string) (*model.FeedbackStats, error) {
	stats := &model.FeedbackStats{
		ByType:   map[model.FeedbackType]int{},
		ByModule: map[string]int{},
	}
	var relevanceSum float64
	var relevanceCount, positive, rated int

	err := s.log.ForEach(func(entry *model.FeedbackEntry) bool {
		if moduleID != "" && entry.ModuleID != moduleID {
			return true
		}
		stats.TotalCount++
		stats.ByType[entry.Type]++
		if entry.ModuleID != "" {
			stats.ByModule[entry.ModuleID]++
		}
		switch entry.Type {
		case model.FeedbackResult:
			relevanceSum += entry.RelevanceScore
			relevanceCount++
			rated++
			if entry.RelevanceScore >= 0.5 {
				positive++
			}
		case model.FeedbackAnswer:
			rated++
			if entry.Helpful != nil && *entry.Helpful {
				positive++
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if relevanceCount > 0 {
		stats.AverageRelevance = relevanceSum / float64(relevanceCount)
	}
	if rated > 0 {
		stats.PositiveRatio = float64(positive) / float64(rated)
	}
	return stats, nil
}

// LowQuality returns results whose average explicit relevance falls below
// threshold, worst first. minCount raises the rating floor for callers that
// want to ignore sparsely rated results; a single low rating flags by default.
func (s *Service) LowQuality(threshold float64, minCount, limit int) ([]model.LowQualityResult, error) {
	if minCount < 1 {
		minCount = 1
	}
	if limit <= 0 {
		limit = 20
	}

	type acc struct {
		sum     float64
		count   int
		queries map[string]bool
	}
	byResult := map[string]*acc{}

	err := s.log.ForEach(func(entry *model.FeedbackEntry) bool {
		if entry.Type != model.FeedbackResult || entry.ResultID == "" {
			return true
		}
		a := byResult[entry.ResultID]
		if a == nil {
			a = &acc{queries: map[string]bool{}}
			byResult[entry.ResultID] = a
		}
		a.sum += entry.RelevanceScore
		a.count++
		if entry.Query != "" {
			a.queries[entry.Query] = true
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	var flagged []model.LowQualityResult
	for id, a := range byResult {
		avg := a.sum / float64(a.count)
		if a.count < minCount || avg >= threshold {
			continue
		}
		queries := make([]string, 0, len(a.queries))
		for q := range a.queries {
			queries = append(queries, q)
		}
		sort.Strings(queries)
		flagged = append(flagged, model.LowQualityResult{
			ResultID:         id,
			AverageRelevance: avg,
			FeedbackCount:    a.count,
			Queries:          queries,
		})
	}

	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].AverageRelevance != flagged[j].AverageRelevance {
			return flagged[i].AverageRelevance < flagged[j].AverageRelevance
		}
		return flagged[i].ResultID < flagged[j].ResultID
	})
	if len(flagged) > limit {
		flagged = flagged[:limit]
	}
	return flagged, nil
}
