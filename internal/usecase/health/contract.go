package health

import "context"

// RetrievalPinger is satisfied by the vector store.
type RetrievalPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker is satisfied by the embedding provider client.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
