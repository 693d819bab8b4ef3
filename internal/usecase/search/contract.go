package search

import (
	"context"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
)

// Retriever runs one filtered nearest-neighbour search over the program fragments.
type Retriever interface {
	Search(ctx context.Context, vector []float32, filters filter.Expression, limit int) ([]document.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Classifier maps a query onto the taxonomy and widens it with taxonomy
// keywords before embedding.
type Classifier interface {
	Classify(ctx context.Context, query string, qt classification.QueryType) classification.Result
	Expand(query string, r classification.Result) string
}
