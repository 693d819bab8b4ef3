package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/roster"
	"github.com/openprogramia/propuestas/internal/domain/taxonomy/taxonomytest"
	"github.com/openprogramia/propuestas/internal/usecase/classify"
)

func newTestService(t *testing.T, c Classifier, e Embedder, r Retriever) *Service {
	t.Helper()
	orch := NewOrchestrator(r, testRoster(t), testPool(t), OrchestratorConfig{})
	return New(c, e, orch, ServiceConfig{})
}

func TestSearch_BlankQuery(t *testing.T) {
	cls := &stubClassifier{}
	svc := newTestService(t, cls, &fakeEmbedder{}, &fakeRetriever{})

	_, err := svc.Search(context.Background(), Request{Query: "   "})

	require.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.Empty(t, cls.gotQuery)
}

func TestSearch_UnrecognizedEntitiesSkipRetrieval(t *testing.T) {
	emb := &fakeEmbedder{}
	ret := &fakeRetriever{}
	svc := newTestService(t, &stubClassifier{result: isapresResult(classification.General, 0.8)}, emb, ret)

	resp, err := svc.Search(context.Background(), Request{
		Query:          "qué propone sobre isapres",
		QueryType:      classification.Specific,
		TargetEntities: []string{"Kast", "Bachelet"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Bachelet"}, resp.UnrecognizedEntities)
	assert.Len(t, resp.ValidEntities, len(roster.Default()))
	assert.Contains(t, resp.Message, "Bachelet")
	assert.Empty(t, resp.Documents)
	assert.Equal(t, classification.Specific, resp.Classification.QueryType)
	assert.Zero(t, emb.calls)
	assert.Zero(t, ret.callCount())
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	ret := &fakeRetriever{}
	svc := newTestService(t,
		&stubClassifier{result: isapresResult(classification.General, 0.8)},
		&fakeEmbedder{err: errors.New("connection reset")},
		ret,
	)

	_, err := svc.Search(context.Background(), Request{Query: "isapres"})

	require.ErrorIs(t, err, domain.ErrEmbeddingProviderError)
	assert.Zero(t, ret.callCount())
}

func TestSearch_AllEntitiesUnavailable(t *testing.T) {
	errs := make(map[string]error)
	for _, e := range roster.Default() {
		errs[e.Name] = fmt.Errorf("qdrant: %w", domain.ErrRetrievalUnavailable)
	}
	svc := newTestService(t,
		&stubClassifier{result: isapresResult(classification.General, 0.8)},
		&fakeEmbedder{},
		&fakeRetriever{errs: errs},
	)

	resp, err := svc.Search(context.Background(), Request{Query: "isapres"})

	require.NoError(t, err)
	assert.True(t, resp.Unavailable())
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, resp.Documents)
	assert.NotNil(t, resp.Documents)
	assert.Zero(t, resp.TotalResults)
	assert.Empty(t, resp.CandidatesWithInfo)
	assert.Len(t, resp.CandidatesWithoutInfo, len(roster.Default()))
	assert.Equal(t, "Salud > Isapres", resp.Classification.TaxonomyPath)
}

func TestSearch_PartialFailureStillAnswers(t *testing.T) {
	ret := &fakeRetriever{
		filtered: map[string]int{"Jeannette Jara": 2, "Evelyn Matthei": 2, "Franco Parisi": 1},
		errs:     map[string]error{"José Antonio Kast": domain.ErrRetrievalUnavailable},
	}
	svc := newTestService(t, &stubClassifier{result: isapresResult(classification.General, 0.8)}, &fakeEmbedder{}, ret)

	resp, err := svc.Search(context.Background(), Request{Query: "isapres"})

	require.NoError(t, err)
	assert.Equal(t, 5, resp.TotalResults)
	assert.Len(t, resp.CandidatesWithInfo, 3)
	assert.Contains(t, resp.CandidatesWithoutInfo, "José Antonio Kast")
	assert.Equal(t, 8, resp.Coverage.EntitiesSearched)
	assert.InDelta(t, 3.0/8.0, resp.Coverage.CoverageRatio, 1e-9)
}

func TestSearch_RecordsEmbeddingUsage(t *testing.T) {
	ret := &fakeRetriever{filtered: map[string]int{"Jeannette Jara": 1}}
	svc := newTestService(t, &stubClassifier{result: isapresResult(classification.General, 0.8)}, &fakeEmbedder{}, ret)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	_, err := svc.Search(ctx, Request{Query: "isapres"})

	require.NoError(t, err)
	assert.True(t, usage.Used())
	assert.Equal(t, 7, usage.Tokens())
}

func TestSearch_TopicFeedsClassificationOnly(t *testing.T) {
	cls := &stubClassifier{result: isapresResult(classification.General, 0.8)}
	emb := &fakeEmbedder{}
	svc := newTestService(t, cls, emb, &fakeRetriever{})

	_, err := svc.Search(context.Background(), Request{Query: "qué harán con esto", Topic: "isapres"})

	require.NoError(t, err)
	assert.Equal(t, "qué harán con esto isapres", cls.gotQuery)
	assert.Equal(t, "qué harán con esto", cls.gotExpanded)
	assert.Equal(t, "qué harán con esto", emb.text)
}

func TestSearch_EmbedsExpandedQuery(t *testing.T) {
	cls := &stubClassifier{result: isapresResult(classification.General, 0.8), suffix: "plan de salud"}
	emb := &fakeEmbedder{}
	svc := newTestService(t, cls, emb, &fakeRetriever{filtered: map[string]int{"Jeannette Jara": 2}})

	resp, err := svc.Search(context.Background(), Request{Query: "isapres"})

	require.NoError(t, err)
	assert.Equal(t, "isapres plan de salud", emb.text)
	assert.Equal(t, "isapres", resp.Query)
}

func TestSearch_TruncatesToMaxDocuments(t *testing.T) {
	filtered := make(map[string]int)
	for _, e := range roster.Default() {
		filtered[e.Name] = 5
	}
	svc := newTestService(t,
		&stubClassifier{result: isapresResult(classification.General, 0.8)},
		&fakeEmbedder{},
		&fakeRetriever{filtered: filtered},
	)

	resp, err := svc.Search(context.Background(), Request{Query: "isapres"})

	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDocuments, resp.TotalResults)
	assert.Len(t, resp.Documents, DefaultMaxDocuments)
	assert.Len(t, resp.CandidatesWithInfo, 8)
	assert.False(t, resp.Coverage.FallbackUsed)
	require.Len(t, resp.Coverage.FiltersApplied, 1)
	for i := 1; i < len(resp.Documents); i++ {
		assert.GreaterOrEqual(t, resp.Documents[i-1].FinalScore, resp.Documents[i].FinalScore)
	}
}

func TestSearch_NothingFound(t *testing.T) {
	svc := newTestService(t, &stubClassifier{result: isapresResult(classification.General, 0.8)}, &fakeEmbedder{}, &fakeRetriever{})

	resp, err := svc.Search(context.Background(), Request{Query: "isapres"})

	require.NoError(t, err)
	assert.Zero(t, resp.TotalResults)
	assert.Len(t, resp.CandidatesWithoutInfo, 8)
	// the unfiltered rerun found nothing more, so it is not adopted
	assert.False(t, resp.Coverage.FallbackUsed)
	assert.Equal(t, CoverageNone, resp.Summary.Coverage)
	assert.NotEmpty(t, resp.Message)
}

func TestSearch_WithTaxonomyClassifier(t *testing.T) {
	ret := &fakeRetriever{filtered: map[string]int{"José Antonio Kast": 3}}
	classifier := classify.New(taxonomytest.Load(t), nil)
	svc := newTestService(t, classifier, &fakeEmbedder{}, ret)

	resp, err := svc.Search(context.Background(), Request{
		Query:          "isapre",
		QueryType:      classification.Specific,
		TargetEntities: []string{"JAK"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Salud > Isapres", resp.Classification.TaxonomyPath)
	assert.Equal(t, []string{"José Antonio Kast"}, resp.CandidatesWithInfo)
	assert.Equal(t, 3, resp.TotalResults)
	require.Len(t, ret.calls, 1)
	assert.NotEmpty(t, ret.calls[0].extra)
}

func TestSearch_TaxonomyExpansionReachesEmbedder(t *testing.T) {
	emb := &fakeEmbedder{}
	classifier := classify.New(taxonomytest.Load(t), nil)
	svc := newTestService(t, classifier, emb, &fakeRetriever{filtered: map[string]int{"José Antonio Kast": 1}})

	_, err := svc.Search(context.Background(), Request{Query: "isapre", QueryType: classification.Specific})

	require.NoError(t, err)
	assert.Equal(t, "isapre plan de salud seguro privado cotización salud fonasa", emb.text)
}
