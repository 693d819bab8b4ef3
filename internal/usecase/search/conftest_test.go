package search

import (
	"context"
	"sync"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/require"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
	"github.com/openprogramia/propuestas/internal/domain/roster"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
)

// --- Mocks ---

type retrieveCall struct {
	entity string
	extra  []filter.Condition
	limit  int
}

// fakeRetriever answers per entity. filtered answers calls carrying
// classification filters; plain answers entity-only calls.
type fakeRetriever struct {
	mu       sync.Mutex
	calls    []retrieveCall
	filtered map[string]int
	plain    map[string]int
	errs     map[string]error
}

func (f *fakeRetriever) Search(
	_ context.Context, _ []float32, expr filter.Expression, limit int,
) ([]document.Candidate, error) {
	var c retrieveCall
	c.limit = limit
	for _, cond := range expr.Must() {
		if cond.Key() == document.FieldCandidate {
			c.entity = cond.Value()
			continue
		}
		c.extra = append(c.extra, cond)
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if err := f.errs[c.entity]; err != nil {
		return nil, err
	}
	n := f.plain[c.entity]
	if len(c.extra) > 0 {
		n = f.filtered[c.entity]
	}
	n = min(n, limit)
	docs := make([]document.Candidate, n)
	for i := range docs {
		docs[i] = document.Candidate{
			ID:           c.entity + "-" + string(rune('a'+i)),
			Entity:       c.entity,
			Content:      "propuesta de " + c.entity,
			VectorScore:  0.9 - 0.05*float64(i),
			TaxonomyPath: "Salud > Isapres",
		}
	}
	return docs, nil
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeEmbedder struct {
	err   error
	calls int
	text  string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls++
	f.text = text
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 7}, nil
}

// stubClassifier answers result for every query. Expand appends suffix
// when it is set.
type stubClassifier struct {
	result      classification.Result
	suffix      string
	gotQuery    string
	gotQT       classification.QueryType
	gotExpanded string
}

func (s *stubClassifier) Classify(_ context.Context, query string, qt classification.QueryType) classification.Result {
	s.gotQuery, s.gotQT = query, qt
	r := s.result
	if qt != "" {
		r.QueryType = qt
	}
	return r
}

func (s *stubClassifier) Expand(query string, _ classification.Result) string {
	s.gotExpanded = query
	if s.suffix == "" {
		return query
	}
	return query + " " + s.suffix
}

// --- Helpers ---

func testRoster(t *testing.T) *roster.Roster {
	t.Helper()
	r, err := roster.New(roster.Default())
	require.NoError(t, err)
	return r
}

func testPool(t *testing.T) *ants.Pool {
	t.Helper()
	p, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func isapresResult(qt classification.QueryType, confidence float64) classification.Result {
	return classification.Result{
		Category:        "Salud",
		Subcategory:     "Isapres",
		TaxonomyPath:    "Salud > Isapres",
		Confidence:      confidence,
		MatchedKeywords: []string{"isapre"},
		SuggestedTags:   []string{"salud", "isapres", "isapre"},
		QueryType:       qt,
	}
}
