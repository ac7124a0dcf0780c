package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ehr/opdreports/internal/classify"
)

var (
	// EvaluationsTotal counts report evaluations per report and outcome.
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opdreports_evaluations_total",
			Help: "Total number of report evaluations",
		},
		[]string{"report", "outcome"},
	)

	// EvaluationDuration tracks how long evaluations take, cache hits excluded.
	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opdreports_evaluation_duration_seconds",
			Help:    "Report evaluation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"report"},
	)

	// ClassificationsTotal counts classifier invocations by kind and result.
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opdreports_classifications_total",
			Help: "Total number of classifications performed while evaluating reports",
		},
		[]string{"kind", "result"},
	)

	// CacheLookupsTotal counts export cache lookups.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opdreports_cache_lookups_total",
			Help: "Total number of report export cache lookups",
		},
		[]string{"result"},
	)
)

func observeClassification(kind classify.Kind, matched bool) {
	result := "absent"
	if matched {
		result = "matched"
	}
	ClassificationsTotal.WithLabelValues(string(kind), result).Inc()
}
