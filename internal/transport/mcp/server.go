// Package mcp exposes the query understanding and search operations as
// Model Context Protocol tools for LLM clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
	"github.com/openprogramia/propuestas/internal/logger"
	"github.com/openprogramia/propuestas/internal/usecase/classify"
	searchuc "github.com/openprogramia/propuestas/internal/usecase/search"
	"github.com/openprogramia/propuestas/internal/version"
)

// ServerName identifies the tool server to MCP clients.
const ServerName = "propuestas"

// Tool names.
const (
	ToolClassifyQuery       = "classify_query"
	ToolExpandQuery         = "expand_query"
	ToolGetTaxonomyInfo     = "get_taxonomy_info"
	ToolClearCache          = "clear_cache"
	ToolGetCacheStats       = "get_cache_stats"
	ToolSearchPoliticalDocs = "search_political_docs"
)

// Classifier is the query understanding surface the tools need.
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

// Tools holds the tool handlers.
type Tools struct {
	classifier Classifier
	search     Searcher
	logger     *zap.Logger

	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTools creates the tool handlers. logger may be nil.
func NewTools(classifier Classifier, search Searcher, log *zap.Logger) *Tools {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tools{classifier: classifier, search: search, logger: log}
}

// WithMetrics records every tool call by status and its latency.
func (t *Tools) WithMetrics(calls *prometheus.CounterVec, duration *prometheus.HistogramVec) *Tools {
	t.calls = calls
	t.duration = duration
	return t
}

// NewServer registers every tool on a new MCP server.
func NewServer(t *Tools) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(ServerName, version.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	queryTypes := mcplib.Enum(string(classification.General), string(classification.Specific), string(classification.Comparative))

	s.AddTool(mcplib.NewTool(ToolClassifyQuery,
		mcplib.WithDescription("Clasifica una consulta en la taxonomía de programas de gobierno y devuelve categoría, confianza y filtros sugeridos."),
		mcplib.WithString("query", mcplib.Required(), mcplib.Description("Consulta del usuario")),
		mcplib.WithString("query_type", queryTypes, mcplib.Description("Tipo de consulta; se detecta si se omite")),
	), t.instrument(ToolClassifyQuery, t.ClassifyQuery))

	s.AddTool(mcplib.NewTool(ToolExpandQuery,
		mcplib.WithDescription("Amplía una consulta con palabras clave de la subcategoría clasificada."),
		mcplib.WithString("query", mcplib.Required(), mcplib.Description("Consulta del usuario")),
		mcplib.WithObject("classification", mcplib.Description("Clasificación previa; se calcula si se omite")),
	), t.instrument(ToolExpandQuery, t.ExpandQuery))

	s.AddTool(mcplib.NewTool(ToolGetTaxonomyInfo,
		mcplib.WithDescription("Devuelve versión, totales, umbral de confianza y categoría de respaldo de la taxonomía."),
	), t.instrument(ToolGetTaxonomyInfo, t.GetTaxonomyInfo))

	s.AddTool(mcplib.NewTool(ToolClearCache,
		mcplib.WithDescription("Vacía la caché de clasificaciones."),
	), t.instrument(ToolClearCache, t.ClearCache))

	s.AddTool(mcplib.NewTool(ToolGetCacheStats,
		mcplib.WithDescription("Devuelve estadísticas de la caché de clasificaciones."),
	), t.instrument(ToolGetCacheStats, t.GetCacheStats))

	s.AddTool(mcplib.NewTool(ToolSearchPoliticalDocs,
		mcplib.WithDescription("Busca propuestas en los programas presidenciales, por candidato, con reordenamiento híbrido y resumen de cobertura."),
		mcplib.WithString("query", mcplib.Required(), mcplib.Description("Consulta del usuario")),
		mcplib.WithString("topic", mcplib.Description("Tema adicional que orienta la clasificación")),
		mcplib.WithString("query_type", queryTypes, mcplib.Description("general busca en todos los candidatos; specific/comparative en los indicados")),
		mcplib.WithArray("target_candidates", mcplib.WithStringItems(), mcplib.Description("Candidatos a consultar")),
	), t.instrument(ToolSearchPoliticalDocs, t.SearchPoliticalDocs))

	return s
}

// ClassifyQuery handles classify_query.
func (t *Tools) ClassifyQuery(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := req.GetString("query", "")
	qt, err := classification.ParseQueryType(req.GetString("query_type", ""))
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t.classifier.Classify(t.ctx(ctx, ToolClassifyQuery), query, qt))
}

// ExpandQuery handles expand_query.
func (t *Tools) ExpandQuery(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := req.GetString("query", "")

	var cls classification.Result
	if raw, ok := req.GetArguments()["classification"]; ok && raw != nil {
		if err := remarshal(raw, &cls); err != nil {
			return mcplib.NewToolResultError("invalid classification: " + err.Error()), nil
		}
	} else {
		cls = t.classifier.Classify(t.ctx(ctx, ToolExpandQuery), query, "")
	}

	return jsonResult(map[string]any{
		"query":          query,
		"expanded_query": t.classifier.Expand(query, cls),
		"classification": cls,
	})
}

// GetTaxonomyInfo handles get_taxonomy_info.
func (t *Tools) GetTaxonomyInfo(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(t.classifier.Taxonomy().Info())
}

// ClearCache handles clear_cache.
func (t *Tools) ClearCache(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	t.classifier.ClearCache()
	return mcplib.NewToolResultText("Caché de clasificaciones vaciada."), nil
}

// GetCacheStats handles get_cache_stats.
func (t *Tools) GetCacheStats(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(t.classifier.CacheStats())
}

// SearchPoliticalDocs handles search_political_docs. Pipeline failures are
// reported as tool errors so the model can tell the user. A retrieval
// outage still returns the structured empty result with its error text.
func (t *Tools) SearchPoliticalDocs(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	qt, err := classification.ParseQueryType(req.GetString("query_type", ""))
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	ctx = t.ctx(ctx, ToolSearchPoliticalDocs)
	resp, err := t.search.Search(ctx, searchuc.Request{
		Query:          req.GetString("query", ""),
		Topic:          req.GetString("topic", ""),
		QueryType:      qt,
		TargetEntities: req.GetStringSlice("target_candidates", nil),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("search tool failed", zap.Error(err))
		return mcplib.NewToolResultError(toolErrorMessage(err)), nil
	}
	if resp.Unavailable() {
		logger.FromContext(ctx).Warn("search tool found retrieval unavailable")
	}
	return jsonResult(resp)
}

func (t *Tools) instrument(tool string, h mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		start := time.Now()
		res, err := h(ctx, req)

		status := "ok"
		if err != nil || (res != nil && res.IsError) {
			status = "error"
		}
		if t.calls != nil {
			t.calls.WithLabelValues(tool, status).Inc()
		}
		if t.duration != nil {
			t.duration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
		}
		t.logger.Debug("tool call",
			zap.String("tool", tool),
			zap.String("status", status),
			zap.Duration("duration", time.Since(start)),
		)
		return res, err
	}
}

func (t *Tools) ctx(ctx context.Context, tool string) context.Context {
	return logger.ContextWithLogger(ctx, t.logger.With(zap.String("tool", tool)))
}

func toolErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return "Consulta inválida: " + err.Error()
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return "No se pudo procesar la consulta: el servicio de embeddings no está disponible."
	case errors.Is(err, domain.ErrRetrievalUnavailable):
		return "La base de programas no está disponible en este momento."
	default:
		return "Error interno al buscar en los programas."
	}
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcplib.NewToolResultText(string(data)), nil
}

// remarshal converts a decoded JSON argument into dst.
func remarshal(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
