// Package metrics exposes Prometheus collectors for the ingestion pipeline
// and query engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TasksSubmitted  prometheus.Counter
	TasksCompleted  *prometheus.CounterVec // label: state (COMPLETED|FAILED|REVOKED)
	TasksInFlight   prometheus.Gauge
	StageRetries    *prometheus.CounterVec // label: stage
	SearchDuration  prometheus.Histogram
	SearchRequests  *prometheus.CounterVec // label: status (ok|error)
	FeedbackEntries *prometheus.CounterVec // label: type
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "notegraph",
			Name:      "ingest_tasks_submitted_total",
			Help:      "Ingestion tasks accepted for processing.",
		}),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notegraph",
			Name:      "ingest_tasks_finished_total",
			Help:      "Ingestion tasks by terminal state.",
		}, []string{"state"}),
		TasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "notegraph",
			Name:      "ingest_tasks_in_flight",
			Help:      "Tasks currently being processed by workers.",
		}),
		StageRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notegraph",
			Name:      "ingest_stage_retries_total",
			Help:      "Stage attempts beyond the first, by stage.",
		}, []string{"stage"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "notegraph",
			Name:      "search_duration_seconds",
			Help:      "Hybrid search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		SearchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notegraph",
			Name:      "search_requests_total",
			Help:      "Search requests by outcome.",
		}, []string{"status"}),
		FeedbackEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notegraph",
			Name:      "feedback_entries_total",
			Help:      "Feedback log entries by type.",
		}, []string{"type"}),
	}
}
