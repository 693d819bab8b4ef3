package db

import (
	"context"
	"time"
)

// VectorStore is a retrieval backend holding the program fragments. Both the
// Qdrant and the Redis stores implement it.
type VectorStore interface {
	Pinger
	Searcher
	SchemaManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher provides filtered vector similarity search.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// SchemaManager prepares a collection for filtered search: keyword indexes
// on the filter fields and, where the backend needs one, a vector index.
type SchemaManager interface {
	EnsureSchema(ctx context.Context, schema *CollectionSchema) error
}
