package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
	"github.com/openprogramia/propuestas/internal/domain/taxonomy/taxonomytest"
	"github.com/openprogramia/propuestas/internal/usecase/classify"
	healthuc "github.com/openprogramia/propuestas/internal/usecase/health"
	searchuc "github.com/openprogramia/propuestas/internal/usecase/search"
)

// --- Mocks ---

type mockSearcher struct {
	resp *searchuc.Response
	err  error
	got  searchuc.Request
}

func (m *mockSearcher) Search(ctx context.Context, req searchuc.Request) (*searchuc.Response, error) {
	m.got = req
	if m.err == nil {
		domain.UsageFromContext(ctx).AddTokens(12)
	}
	return m.resp, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newTestClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	return classify.New(taxonomytest.Load(t), classify.NewCache(time.Minute, 100))
}

func newTestRouter(t *testing.T, s Searcher, h HealthChecker, opts RouterOptions) (http.Handler, *classify.Classifier) {
	t.Helper()
	c := newTestClassifier(t)
	if h == nil {
		h = mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}}
	}
	return NewServer(c, s, h).Router(opts), c
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

// --- Tests ---

func TestClassify_POST(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodPost, "/api/v1/classify", `{"query":"isapre","query_type":"specific"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[classification.Result](t, rr)
	assert.Equal(t, "Salud > Isapres", got.TaxonomyPath)
	assert.Equal(t, classification.Specific, got.QueryType)
	assert.Greater(t, got.Confidence, 0.7)
	assert.Contains(t, got.MatchedKeywords, "isapre")
}

func TestClassify_GET(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodGet, "/api/v1/classify?query=fonasa&query_type=general", "")

	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[classification.Result](t, rr)
	assert.Equal(t, "Salud > Fonasa", got.TaxonomyPath)
	assert.Equal(t, classification.General, got.QueryType)
}

func TestClassify_GETMissingQuery(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodGet, "/api/v1/classify", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeBadRequest, decode[ErrorResponse](t, rr).Code)
}

func TestClassify_EmptyQueryIsFallback(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodPost, "/api/v1/classify", `{"query":""}`)

	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[classification.Result](t, rr)
	assert.Equal(t, "Institucionalidad", got.Category)
	assert.Equal(t, "General", got.Subcategory)
	assert.Zero(t, got.Confidence)
}

func TestClassify_InvalidQueryType(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodPost, "/api/v1/classify", `{"query":"afp","query_type":"broad"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeInvalidQuery, decode[ErrorResponse](t, rr).Code)
}

func TestClassify_BadBody(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodPost, "/api/v1/classify", `{"query":`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExpand(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodPost, "/api/v1/expand", `{"query":"isapre"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[ExpandResponse](t, rr)
	assert.Equal(t, "isapre", got.Query)
	assert.True(t, strings.HasPrefix(got.ExpandedQuery, "isapre "))
	assert.Equal(t, "Salud > Isapres", got.Classification.TaxonomyPath)
}

func TestExpand_LowConfidenceIsNoop(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodPost, "/api/v1/expand",
		`{"query":"hola","classification":{"category":"Salud","subcategory":"Isapres","confidence":0.1}}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hola", decode[ExpandResponse](t, rr).ExpandedQuery)
}

func TestTaxonomyInfo(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})

	rr := do(t, h, http.MethodGet, "/api/v1/taxonomy", "")

	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[taxonomy.Info](t, rr)
	assert.Equal(t, "1.0", got.Version)
	assert.Equal(t, 4, got.TotalCategories)
	assert.Equal(t, "Institucionalidad", got.FallbackCategory)
}

func TestCache_StatsAndClear(t *testing.T) {
	h, c := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{})
	c.Classify(context.Background(), "isapre", "")
	c.Classify(context.Background(), "afp", "")

	rr := do(t, h, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, decode[classify.CacheStats](t, rr).TotalEntries)

	rr = do(t, h, http.MethodDelete, "/api/v1/cache", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, c.CacheStats().TotalEntries)
}

func TestSearch_MapsRequest(t *testing.T) {
	s := &mockSearcher{resp: &searchuc.Response{Query: "isapres"}}
	h, _ := newTestRouter(t, s, nil, RouterOptions{})

	rr := do(t, h, http.MethodPost, "/api/v1/search",
		`{"query":"isapres","topic":"salud","query_type":"comparative","target_candidates":["Kast","Jara"]}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "isapres", s.got.Query)
	assert.Equal(t, "salud", s.got.Topic)
	assert.Equal(t, classification.Comparative, s.got.QueryType)
	assert.Equal(t, []string{"Kast", "Jara"}, s.got.TargetEntities)
	assert.Equal(t, "isapres", decode[searchuc.Response](t, rr).Query)
	assert.Equal(t, "12", rr.Header().Get("X-Embedding-Tokens"))
}

func TestSearch_UnavailableKeepsBody(t *testing.T) {
	s := &mockSearcher{resp: &searchuc.Response{
		Query:     "isapres",
		Documents: []document.Ranked{},
		Error:     "La base de programas no está disponible en este momento.",
	}}
	h, _ := newTestRouter(t, s, nil, RouterOptions{})

	rr := do(t, h, http.MethodPost, "/api/v1/search", `{"query":"isapres"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decode[searchuc.Response](t, rr)
	assert.Equal(t, "isapres", body.Query)
	assert.NotEmpty(t, body.Error)
	assert.Empty(t, body.Documents)
	assert.Zero(t, body.TotalResults)
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody ErrorCode
	}{
		{"invalid query", fmt.Errorf("query is required: %w", domain.ErrInvalidQuery), http.StatusBadRequest, CodeInvalidQuery},
		{"embedding", fmt.Errorf("embed query: %w", domain.ErrEmbeddingProviderError), http.StatusBadGateway, CodeEmbeddingProviderError},
		{"retrieval", fmt.Errorf("all failed: %w", domain.ErrRetrievalUnavailable), http.StatusServiceUnavailable, CodeRetrievalUnavailable},
		{"unknown", errors.New("qdrant: secret internal detail"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, &mockSearcher{err: tt.err}, nil, RouterOptions{})

			rr := do(t, h, http.MethodPost, "/api/v1/search", `{"query":"isapres"}`)

			assert.Equal(t, tt.wantCode, rr.Code)
			body := decode[ErrorResponse](t, rr)
			assert.Equal(t, tt.wantBody, body.Code)
			assert.NotContains(t, body.Message, "secret")
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			hc := mockHealth{report: healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.ComponentRetrieval: healthuc.CheckOK},
			}}
			h, _ := newTestRouter(t, &mockSearcher{}, hc, RouterOptions{APIKeys: []string{"secret"}})

			rr := do(t, h, http.MethodGet, "/health", "")

			assert.Equal(t, tt.want, rr.Code)
			assert.Equal(t, tt.status, decode[HealthResponse](t, rr).Status)
		})
	}
}

func TestRouter_AuthAppliesToAPI(t *testing.T) {
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{APIKeys: []string{"secret"}})

	rr := do(t, h, http.MethodGet, "/api/v1/taxonomy", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_WideEventLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h, _ := newTestRouter(t, &mockSearcher{}, nil, RouterOptions{Logger: zap.New(core)})

	rr := do(t, h, http.MethodGet, "/api/v1/taxonomy", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/v1/taxonomy", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.Equal(t, rr.Header().Get("X-Request-ID"), fields["request_id"])
	assert.Equal(t, "/api/v1/taxonomy", fields["route"])
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

func TestRouter_WideEventLevelsAndTokens(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := &mockSearcher{resp: &searchuc.Response{Query: "isapres"}}
	h, _ := newTestRouter(t, s, nil, RouterOptions{Logger: zap.New(core)})

	do(t, h, http.MethodPost, "/api/v1/search", `{"query":"isapres"}`)
	do(t, h, http.MethodPost, "/api/v1/search", `{"query":`)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 2)
	assert.EqualValues(t, 12, entries[0].ContextMap()["embedding_tokens"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.NotContains(t, entries[1].ContextMap(), "embedding_tokens")
}

func TestRouter_RecoversPanics(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := do(t, h, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, CodeInternalError, decode[ErrorResponse](t, rr).Code)
}
