package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prosearch_runs_started_total",
			Help: "Total number of research runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prosearch_runs_completed_total",
			Help: "Total number of research runs completed",
		},
		[]string{"status"}, // done, failed, cancelled
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prosearch_run_duration_seconds",
			Help:    "End-to-end research run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prosearch_stage_duration_seconds",
			Help:    "Duration of individual workflow stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	BranchesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prosearch_research_branches_dispatched_total",
			Help: "Total number of web research branches dispatched",
		},
	)

	BranchesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prosearch_research_branches_failed_total",
			Help: "Total number of web research branches that failed",
		},
		[]string{"kind"}, // search, summarization
	)

	ReflectionLoops = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prosearch_reflection_loops",
			Help:    "Number of reflection loops per run",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	SourcesResolved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prosearch_sources_resolved",
			Help:    "Number of deduplicated sources cited in final answers",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
)
