package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks API latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	WorkflowTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Staffing request state transitions by target state.",
	}, []string{"to_state"})

	ProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposals_total",
		Help: "Proposal decisions by outcome.",
	}, []string{"decision"})

	ScoresComputedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scores_computed_total",
		Help: "Scoring engine invocations.",
	})

	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Kelio sync runs by final status.",
	}, []string{"status"})

	SyncBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_batches_total",
		Help: "Kelio sync batches by outcome.",
	}, []string{"outcome"})

	SyncRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_retries_total",
		Help: "Batch retry attempts across all runs.",
	})

	SyncRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_run_duration_seconds",
		Help:    "Elapsed time of completed sync runs.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	KelioFeedMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kelio_feed_messages_total",
		Help: "Change-feed messages by result (applied, duplicate, dlq).",
	}, []string{"result"})
)
