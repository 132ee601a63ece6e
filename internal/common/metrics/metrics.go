// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysisPasses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_analysis_passes_total",
			Help: "Total number of cohort analysis passes",
		},
	)

	CohortSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_cohort_size",
			Help: "Number of candidates in the current cohort",
		},
	)

	TreatmentsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_treatments_applied_total",
			Help: "Total number of treatment applications by result",
		},
		[]string{"result"},
	)

	BulkRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "engine_bulk_run_duration_seconds",
			Help: "Duration of bulk treatment runs in seconds",
		},
	)

	BulkRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_bulk_runs_active",
			Help: "Whether a bulk treatment run is currently in flight",
		},
	)
)
