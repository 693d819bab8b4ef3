package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query embedding metrics. Only search queries are embedded here; fragment
// vectors are produced by the ingestion job.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Query embedding calls to the provider by status",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Provider latency for one query embedding",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.5, 3, 6},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Provider tokens billed for query embeddings",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_errors_total",
			Help:      "Query embedding failures by error class",
		},
		[]string{"provider", "model", "error_type"}, // rate_limited / auth / timeout / api_error / empty_response / dimension_mismatch
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache lookups in Redis by result",
		},
		[]string{"result"}, // hit / miss / stale
	)
)
