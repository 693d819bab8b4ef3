// Package retrieval turns raw vector-store hits into proposal fragments.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/openprogramia/propuestas/internal/db"
	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/document"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
)

// store is the consumer interface for retrieval (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	EnsureSchema(ctx context.Context, schema *db.CollectionSchema) error
}

// Repo implements usecase/search.Retriever over a single collection.
type Repo struct {
	store      store
	collection string
	ef         int
}

// New creates a retrieval repository bound to one collection. ef is the
// HNSW search-time candidate list size; 0 keeps the backend default.
func New(s store, collection string, ef int) *Repo {
	return &Repo{store: s, collection: collection, ef: ef}
}

// Collection returns the bound collection name.
func (r *Repo) Collection() string { return r.collection }

// Search returns at most limit fragments nearest to vector that satisfy
// every condition in filters. Backend outages surface as
// domain.ErrRetrievalUnavailable.
func (r *Repo) Search(
	ctx context.Context, vector []float32, filters filter.Expression, limit int,
) ([]document.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		Collection:   r.collection,
		Filters:      filters,
		Vector:       vector,
		K:            limit,
		ReturnFields: document.PayloadFields,
		EF:           r.ef,
	})
	if err != nil {
		if errors.Is(err, db.ErrUnavailable) {
			return nil, fmt.Errorf("search %s: %w: %w", r.collection, domain.ErrRetrievalUnavailable, err)
		}
		return nil, fmt.Errorf("search %s: %w", r.collection, err)
	}

	out := make([]document.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		out = append(out, document.FromPayload(e.Key, e.Score, e.Fields))
	}
	return out, nil
}

// EnsureSchema creates the collection layout the filters rely on.
func (r *Repo) EnsureSchema(ctx context.Context, vectorDim int) error {
	err := r.store.EnsureSchema(ctx, &db.CollectionSchema{
		Name:          r.collection,
		KeywordFields: document.KeywordFields,
		NumericFields: []string{document.FieldPageNumber},
		VectorDim:     vectorDim,
	})
	if err != nil {
		return fmt.Errorf("ensure schema %s: %w", r.collection, err)
	}
	return nil
}
