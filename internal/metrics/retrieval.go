package metrics

import "github.com/prometheus/client_golang/prometheus"

// Tool and workspace metrics.
var (
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations executed, by tool and outcome",
		},
		[]string{"tool", "outcome"}, // ok / error / unknown / invalid_args
	)

	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"tool"},
	)

	ToolResultsTruncated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_results_truncated_total",
			Help:      "Tool results cut to the transcript size limit",
		},
		[]string{"tool"},
	)

	LocalIndexFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_index_fallbacks_total",
			Help:      "Workspace lookups that fell back from the snapshot to the live API",
		},
		[]string{"reason"}, // unavailable / no_results / not_found
	)

	WorkspaceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workspace_requests_total",
			Help:      "Live workspace API requests",
		},
		[]string{"op", "status"},
	)

	WorkspaceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workspace_request_duration_seconds",
			Help:      "Live workspace API request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers tool and workspace metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(ToolCallDuration)
	prometheus.MustRegister(ToolResultsTruncated)
	prometheus.MustRegister(LocalIndexFallbacks)
	prometheus.MustRegister(WorkspaceRequestsTotal)
	prometheus.MustRegister(WorkspaceRequestDuration)
	retrievalMetricsRegistered = true
}
