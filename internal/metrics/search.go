package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classification and retrieval Prometheus metrics. Components receive the
// vectors explicitly so tests can run without a registry.
var (
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Query classifications by outcome",
		},
		[]string{"outcome", "query_type"}, // outcome: matched / fallback
	)

	ClassificationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_cache_total",
			Help:      "Classification cache hits and misses",
		},
		[]string{"result"},
	)

	EntitySearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_searches_total",
			Help:      "Per-entity retrieval calls by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: hits / empty / error
	)

	FallbackPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_passes_total",
			Help:      "Unfiltered fallback passes and whether they were adopted",
		},
		[]string{"query_type", "adopted"},
	)

	SearchPipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_pipeline_duration_seconds",
			Help:      "End-to-end search pipeline duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"query_type", "status"},
	)

	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mcp_tool_calls_total",
			Help:      "MCP tool invocations by tool and status",
		},
		[]string{"tool", "status"}, // status: ok / error
	)

	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mcp_tool_call_duration_seconds",
			Help:      "MCP tool handler latency",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)
)
