package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and workflow engine metrics.
var (
	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studycat",
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of one search plan stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"entry", "stage"}, // entry: studies/datasets; stage: resolve/fetch/facets
	)

	SearchShortCircuitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycat",
			Name:      "search_short_circuit_total",
			Help:      "Searches answered empty from the key-resolution stage",
		},
		[]string{"entry"},
	)

	WorkflowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycat",
			Name:      "workflow_transitions_total",
			Help:      "Workflow transition attempts by action and outcome",
		},
		[]string{"action", "outcome"}, // outcome: ok/conflict/state/forbidden
	)

	CompensationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studycat",
			Name:      "compensation_runs_total",
			Help:      "Rollback sequences executed after a failed multi-document write",
		},
		[]string{"sequence"},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers the engine metrics. Must be called once
// from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchStageDuration)
	prometheus.MustRegister(SearchShortCircuitTotal)
	prometheus.MustRegister(WorkflowTransitionsTotal)
	prometheus.MustRegister(CompensationRunsTotal)
	engineMetricsRegistered = true
}
