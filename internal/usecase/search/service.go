// Package search runs the retrieval pipeline: classify, embed, fan out per
// entity, rerank and summarize.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
	"github.com/openprogramia/propuestas/internal/logger"
	"github.com/openprogramia/propuestas/internal/usecase/classify"
)

// Service defaults.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxDocuments   = 20
)

// Request is one searchPoliticalDocs call. Topic only feeds the
// classification; the embedded text is Query plus its taxonomy expansion.
type Request struct {
	Query          string
	Topic          string
	QueryType      classification.QueryType
	TargetEntities []string
}

// CoverageAnalysis reports how many entities returned information.
type CoverageAnalysis struct {
	QueryType        classification.QueryType `json:"query_type"`
	EntitiesSearched int                      `json:"total_candidates_searched"`
	WithInfo         int                      `json:"candidates_with_info"`
	WithoutInfo      int                      `json:"candidates_without_info"`
	CoverageRatio    float64                  `json:"coverage_ratio"`
	FallbackUsed     bool                     `json:"fallback_used"`
	FiltersApplied   []filter.Condition       `json:"filters_applied"`
}

// Response is the pipeline result. When some requested entities are not
// in the roster, only the classification, the unrecognized names, the
// valid roster and a message are set. When no entity could be searched,
// Error is set and Documents is empty.
type Response struct {
	Query                 string                `json:"query"`
	Documents             []document.Ranked     `json:"documents"`
	TotalResults          int                   `json:"total_results"`
	CandidatesWithInfo    []string              `json:"candidates_with_info"`
	CandidatesWithoutInfo []string              `json:"candidates_without_info"`
	Summary               Summary               `json:"search_summary"`
	Classification        classification.Result `json:"classification"`
	Coverage              CoverageAnalysis      `json:"coverage_analysis"`
	UnrecognizedEntities  []string              `json:"unrecognized_entities,omitempty"`
	ValidEntities         []string              `json:"valid_entities,omitempty"`
	Message               string                `json:"message,omitempty"`
	Error                 string                `json:"error,omitempty"`
}

// Unavailable reports whether the retrieval backend failed for every entity.
func (r *Response) Unavailable() bool {
	return r.Error != ""
}

// unavailableMessage is the Error text of an all-entities outage.
const unavailableMessage = "La base de programas no está disponible en este momento. Intenta nuevamente en unos minutos."

// ServiceConfig tunes the pipeline.
type ServiceConfig struct {
	RequestTimeout time.Duration
	MaxDocuments   int
}

// Service is the search pipeline. It holds no per-request state.
type Service struct {
	classifier Classifier
	embed      Embedder
	orch       *Orchestrator
	cfg        ServiceConfig
	tracer     trace.Tracer

	duration *prometheus.HistogramVec
}

// New creates the search pipeline.
func New(classifier Classifier, embed Embedder, orch *Orchestrator, cfg ServiceConfig) *Service {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = DefaultMaxDocuments
	}
	return &Service{
		classifier: classifier,
		embed:      embed,
		orch:       orch,
		cfg:        cfg,
		tracer:     otel.Tracer(tracerName),
	}
}

// WithMetrics records pipeline duration by query type and status.
func (s *Service) WithMetrics(duration *prometheus.HistogramVec) *Service {
	s.duration = duration
	return s
}

// Search runs the whole pipeline under the request timeout. Embedding
// failures abort the request; per-entity retrieval failures only mark
// the entity as having no information. If every entity failed because the
// backend was unavailable, the response is empty and carries Error.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrInvalidQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "search.pipeline")
	defer span.End()

	resp, err := s.run(ctx, query, req)

	qt := ""
	if resp != nil {
		qt = string(resp.Classification.QueryType)
	}
	status := "ok"
	switch {
	case err != nil:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
	case resp.Unavailable():
		status = "unavailable"
		span.SetStatus(codes.Error, "retrieval unavailable")
	}
	if s.duration != nil {
		s.duration.WithLabelValues(qt, status).Observe(time.Since(start).Seconds())
	}
	return resp, err
}

func (s *Service) run(ctx context.Context, query string, req Request) (*Response, error) {
	span := trace.SpanFromContext(ctx)

	text := query
	if topic := strings.TrimSpace(req.Topic); topic != "" {
		text = query + " " + topic
	}
	cls := s.classifier.Classify(ctx, text, req.QueryType)
	cls.Filters = classify.GenerateFilters(cls)

	ctx = logger.With(ctx,
		zap.String("query_type", string(cls.QueryType)),
		zap.String("taxonomy_path", cls.TaxonomyPath),
	)
	log := logger.FromContext(ctx)
	span.SetAttributes(
		attribute.String("search.query_type", string(cls.QueryType)),
		attribute.String("search.taxonomy_path", cls.TaxonomyPath),
		attribute.Float64("search.confidence", cls.Confidence),
	)

	entities, unrecognized := s.orch.Targets(cls.QueryType, req.TargetEntities)
	if len(unrecognized) > 0 {
		log.Info("unrecognized entities", zap.Strings("names", unrecognized))
		return &Response{
			Query:                 query,
			Documents:             []document.Ranked{},
			CandidatesWithInfo:    []string{},
			CandidatesWithoutInfo: []string{},
			Summary:               Summarize(nil, cls),
			Classification:        cls,
			Coverage:              CoverageAnalysis{QueryType: cls.QueryType, FiltersApplied: cls.Filters},
			UnrecognizedEntities:  unrecognized,
			ValidEntities:         s.orch.Roster().Names(),
			Message: fmt.Sprintf("No se reconocen los candidatos: %s. Candidatos disponibles: %s.",
				strings.Join(unrecognized, ", "), strings.Join(s.orch.Roster().Names(), ", ")),
		}, nil
	}

	expanded := s.classifier.Expand(query, cls)
	if expanded != query {
		log.Debug("query expanded", zap.String("expanded_query", expanded))
		span.SetAttributes(attribute.String("search.expanded_query", expanded))
	}

	emb, err := s.embed.Embed(ctx, expanded)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingProviderError) && !errors.Is(err, domain.ErrInvalidQuery) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
		}
		log.Error("query embedding failed", zap.Error(err))
		return nil, fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	outcome := s.orch.SearchAll(ctx, emb.Embedding, cls, entities)
	if err := allUnavailable(outcome); err != nil {
		log.Error("retrieval unavailable", zap.Error(err))
		return unavailableResponse(query, cls, outcome), nil
	}

	var docs []document.Candidate
	withInfo := make([]string, 0, len(outcome.Results))
	withoutInfo := make([]string, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		if r.HasInfo() {
			withInfo = append(withInfo, r.Entity.Name)
			docs = append(docs, r.Documents...)
		} else {
			withoutInfo = append(withoutInfo, r.Entity.Name)
		}
	}

	ranked := Rerank(docs, query, cls)
	if len(ranked) > s.cfg.MaxDocuments {
		ranked = ranked[:s.cfg.MaxDocuments]
	}

	resp := &Response{
		Query:                 query,
		Documents:             ranked,
		TotalResults:          len(ranked),
		CandidatesWithInfo:    withInfo,
		CandidatesWithoutInfo: withoutInfo,
		Summary:               Summarize(ranked, cls),
		Classification:        cls,
		Coverage: CoverageAnalysis{
			QueryType:        cls.QueryType,
			EntitiesSearched: len(outcome.Results),
			WithInfo:         len(withInfo),
			WithoutInfo:      len(withoutInfo),
			FallbackUsed:     outcome.FallbackUsed,
			FiltersApplied:   cls.Filters,
		},
	}
	if n := len(outcome.Results); n > 0 {
		resp.Coverage.CoverageRatio = float64(len(withInfo)) / float64(n)
	}
	if len(ranked) == 0 {
		resp.Message = fmt.Sprintf("No se encontraron documentos específicos sobre %q en los programas de gobierno.", query)
	}

	log.Info("search completed",
		zap.Int("documents", len(ranked)),
		zap.Int("entities_with_info", len(withInfo)),
		zap.Bool("fallback_used", outcome.FallbackUsed),
	)
	return resp, nil
}

func unavailableResponse(query string, cls classification.Result, o Outcome) *Response {
	names := make([]string, len(o.Results))
	for i, r := range o.Results {
		names[i] = r.Entity.Name
	}
	return &Response{
		Query:                 query,
		Documents:             []document.Ranked{},
		CandidatesWithInfo:    []string{},
		CandidatesWithoutInfo: names,
		Summary:               Summarize(nil, cls),
		Classification:        cls,
		Coverage: CoverageAnalysis{
			QueryType:        cls.QueryType,
			EntitiesSearched: len(names),
			WithoutInfo:      len(names),
			FiltersApplied:   cls.Filters,
		},
		Error: unavailableMessage,
	}
}

// allUnavailable reports the backend outage when no entity could be
// searched at all.
func allUnavailable(o Outcome) error {
	if len(o.Results) == 0 {
		return nil
	}
	for _, r := range o.Results {
		if r.Err == nil || !errors.Is(r.Err, domain.ErrRetrievalUnavailable) {
			return nil
		}
	}
	return fmt.Errorf("all %d entity searches failed: %w", len(o.Results), o.Results[0].Err)
}
