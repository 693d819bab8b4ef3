package retrieval

import (
	"context"
	"testing"

	"github.com/openprogramia/propuestas/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	ensureSchemaFn func(ctx context.Context, s *db.CollectionSchema) error
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) EnsureSchema(ctx context.Context, s *db.CollectionSchema) error {
	if m.ensureSchemaFn != nil {
		return m.ensureSchemaFn(ctx, s)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "programas", 128), ms
}
