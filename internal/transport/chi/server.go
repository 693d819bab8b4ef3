// Package chi exposes the query understanding and search operations as a
// JSON HTTP API.
package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
	"github.com/openprogramia/propuestas/internal/metrics"
	"github.com/openprogramia/propuestas/internal/usecase/classify"
	healthuc "github.com/openprogramia/propuestas/internal/usecase/health"
	searchuc "github.com/openprogramia/propuestas/internal/usecase/search"
)

// Classifier is the query understanding surface the API needs.
type Classifier interface {
	Classify(ctx context.Context, query string, qt classification.QueryType) classification.Result
	Expand(query string, r classification.Result) string
	ClearCache()
	CacheStats() classify.CacheStats
	Taxonomy() *taxonomy.Taxonomy
}

// Searcher runs the retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (*searchuc.Response, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	classifier Classifier
	search     Searcher
	health     HealthChecker
}

// NewServer creates an HTTP API server.
func NewServer(classifier Classifier, search Searcher, health HealthChecker) *Server {
	return &Server{
		classifier: classifier,
		search:     search,
		health:     health,
	}
}

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	Logger  *zap.Logger
	APIKeys []string
}

// Router mounts every route with the recovery, request id, logging, auth
// and metrics middleware.
func (s *Server) Router(opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(JSONRecoverer(log))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(log))
	r.Use(BearerAuthMiddleware(opts.APIKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/classify", s.ClassifyQuery)
		r.Get("/classify", s.ClassifyQueryParams)
		r.Post("/expand", s.ExpandQuery)
		r.Get("/taxonomy", s.GetTaxonomyInfo)
		r.Delete("/cache", s.ClearCache)
		r.Get("/cache/stats", s.GetCacheStats)
		r.Post("/search", s.SearchPoliticalDocs)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// ClassifyRequest is the body of POST /api/v1/classify.
type ClassifyRequest struct {
	Query     string `json:"query"`
	QueryType string `json:"query_type,omitempty"`
}

// ExpandRequest is the body of POST /api/v1/expand. Without a
// classification the query is classified first.
type ExpandRequest struct {
	Query          string                 `json:"query"`
	Classification *classification.Result `json:"classification,omitempty"`
}

// ExpandResponse carries the expanded query.
type ExpandResponse struct {
	Query          string                `json:"query"`
	ExpandedQuery  string                `json:"expanded_query"`
	Classification classification.Result `json:"classification"`
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query            string   `json:"query"`
	Topic            string   `json:"topic,omitempty"`
	QueryType        string   `json:"query_type,omitempty"`
	TargetCandidates []string `json:"target_candidates,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// ClassifyQuery handles POST /api/v1/classify.
func (s *Server) ClassifyQuery(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.classify(w, r, req.Query, req.QueryType)
}

// ClassifyQueryParams handles GET /api/v1/classify?query=&query_type=.
func (s *Server) ClassifyQueryParams(w http.ResponseWriter, r *http.Request) {
	var (
		query     string
		queryType *string
	)
	params := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "query", params, &query); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter query: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "query_type", params, &queryType); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter query_type: "+err.Error())
		return
	}

	qt := ""
	if queryType != nil {
		qt = *queryType
	}
	s.classify(w, r, query, qt)
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request, query, rawType string) {
	qt, err := parseQueryType(rawType)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.classifier.Classify(r.Context(), query, qt))
}

// ExpandQuery handles POST /api/v1/expand.
func (s *Server) ExpandQuery(w http.ResponseWriter, r *http.Request) {
	var req ExpandRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var cls classification.Result
	if req.Classification != nil {
		cls = *req.Classification
	} else {
		cls = s.classifier.Classify(r.Context(), req.Query, "")
	}

	writeJSON(w, http.StatusOK, ExpandResponse{
		Query:          req.Query,
		ExpandedQuery:  s.classifier.Expand(req.Query, cls),
		Classification: cls,
	})
}

// GetTaxonomyInfo handles GET /api/v1/taxonomy.
func (s *Server) GetTaxonomyInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.classifier.Taxonomy().Info())
}

// ClearCache handles DELETE /api/v1/cache.
func (s *Server) ClearCache(w http.ResponseWriter, _ *http.Request) {
	s.classifier.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// GetCacheStats handles GET /api/v1/cache/stats.
func (s *Server) GetCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.classifier.CacheStats())
}

// SearchPoliticalDocs handles POST /api/v1/search.
func (s *Server) SearchPoliticalDocs(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	qt, err := parseQueryType(req.QueryType)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, searchuc.Request{
		Query:          req.Query,
		Topic:          req.Topic,
		QueryType:      qt,
		TargetEntities: req.TargetCandidates,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	status := http.StatusOK
	if resp.Unavailable() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: report.Status, Checks: report.Checks})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseQueryType(s string) (classification.QueryType, error) {
	qt, err := classification.ParseQueryType(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return qt, nil
}
