// Package metrics declares the Prometheus collectors of the service. The
// vectors are package-level so components can receive them through their
// WithMetrics builders; Register puts them on the default registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "propuestas"

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call from
// each command that needs metrics.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal, httpRequestDuration, httpRequestsInFlight,
			EmbeddingRequestsTotal, EmbeddingRequestDuration, EmbeddingTokensTotal,
			EmbeddingErrorsTotal, EmbeddingCacheTotal,
			ClassificationsTotal, ClassificationCacheTotal,
			EntitySearchesTotal, FallbackPassesTotal, SearchPipelineDuration,
			ToolCallsTotal, ToolCallDuration,
		)
	})
}
