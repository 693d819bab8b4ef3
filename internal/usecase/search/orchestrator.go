package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
	"github.com/openprogramia/propuestas/internal/domain/roster"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
	"github.com/openprogramia/propuestas/internal/logger"
)

const tracerName = "github.com/openprogramia/propuestas/internal/usecase/search"

// Strategy records which filters produced an entity's documents.
type Strategy string

const (
	// StrategyFiltered: entity plus classification filters.
	StrategyFiltered Strategy = "filtered"
	// StrategyEntityOnly: entity filter alone, at the fallback limit when
	// the filtered call came back empty.
	StrategyEntityOnly Strategy = "entity_only"
	// StrategyUnfiltered: the pass-level rerun with classification filters stripped.
	StrategyUnfiltered Strategy = "unfiltered"
)

// Orchestrator defaults.
const (
	DefaultPerEntityLimit      = 5
	DefaultFallbackLimit       = 10
	DefaultMinEntitiesWithHits = 3
	DefaultEntityTimeout       = 8 * time.Second
)

// TargetResult is the outcome of searching one entity. A failed search
// carries Err and no documents; it counts as "no information".
type TargetResult struct {
	Entity    roster.Entity
	Documents []document.Candidate
	Strategy  Strategy
	Err       error
}

// HasInfo reports whether the entity returned any document.
func (t TargetResult) HasInfo() bool { return len(t.Documents) > 0 }

// Outcome is the joined result of every pass.
type Outcome struct {
	Results      []TargetResult
	FallbackUsed bool
}

// EntitiesWithInfo counts entities that returned at least one document.
func (o Outcome) EntitiesWithInfo() int {
	n := 0
	for _, r := range o.Results {
		if r.HasInfo() {
			n++
		}
	}
	return n
}

// TotalDocuments counts documents across entities.
func (o Outcome) TotalDocuments() int {
	n := 0
	for _, r := range o.Results {
		n += len(r.Documents)
	}
	return n
}

// OrchestratorConfig tunes the per-entity fan-out.
type OrchestratorConfig struct {
	PerEntityLimit      int
	FallbackLimit       int
	MinEntitiesWithHits int
	EntityTimeout       time.Duration
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.PerEntityLimit <= 0 {
		c.PerEntityLimit = DefaultPerEntityLimit
	}
	if c.FallbackLimit <= 0 {
		c.FallbackLimit = DefaultFallbackLimit
	}
	if c.MinEntitiesWithHits <= 0 {
		c.MinEntitiesWithHits = DefaultMinEntitiesWithHits
	}
	if c.EntityTimeout <= 0 {
		c.EntityTimeout = DefaultEntityTimeout
	}
	return c
}

// Orchestrator fans a query vector out to one retrieval call per entity on
// a bounded worker pool. Passes run one after another; calls within a pass
// run concurrently and write only their own slot.
type Orchestrator struct {
	retriever Retriever
	roster    *roster.Roster
	pool      *ants.Pool
	cfg       OrchestratorConfig
	tracer    trace.Tracer

	entitySearches *prometheus.CounterVec
	fallbackPasses *prometheus.CounterVec
}

// NewOrchestrator creates an orchestrator. The pool is owned by the caller.
func NewOrchestrator(r Retriever, ros *roster.Roster, pool *ants.Pool, cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		retriever: r,
		roster:    ros,
		pool:      pool,
		cfg:       cfg.withDefaults(),
		tracer:    otel.Tracer(tracerName),
	}
}

// WithMetrics records entity searches by strategy/outcome and fallback
// passes by query type/adoption.
func (o *Orchestrator) WithMetrics(entitySearches, fallbackPasses *prometheus.CounterVec) *Orchestrator {
	o.entitySearches = entitySearches
	o.fallbackPasses = fallbackPasses
	return o
}

// Roster returns the entity roster.
func (o *Orchestrator) Roster() *roster.Roster { return o.roster }

// Targets picks the entities a query fans out to. General queries and
// targeted queries without names use the whole roster; otherwise names
// are resolved and the unresolved ones returned verbatim.
func (o *Orchestrator) Targets(qt classification.QueryType, names []string) ([]roster.Entity, []string) {
	if !qt.Targeted() || len(names) == 0 {
		return o.roster.All(), nil
	}
	return o.roster.ResolveAll(names)
}

// SearchAll runs the filtered pass over entities and, when it falls short,
// one unfiltered pass. General queries adopt the rerun only if more
// entities return information; targeted queries adopt it when the filtered
// pass found nothing at all.
func (o *Orchestrator) SearchAll(
	ctx context.Context, vector []float32, cls classification.Result, entities []roster.Entity,
) Outcome {
	log := logger.FromContext(ctx)
	conds := cls.Filters

	out := Outcome{Results: o.runPass(ctx, vector, entities, conds, passStrategy(conds))}
	if len(conds) == 0 {
		return out
	}

	var short bool
	if cls.QueryType.Targeted() {
		short = out.TotalDocuments() == 0
	} else {
		short = out.EntitiesWithInfo() < o.cfg.MinEntitiesWithHits
	}
	if !short {
		return out
	}

	rerun := Outcome{Results: o.runPass(ctx, vector, entities, nil, StrategyUnfiltered), FallbackUsed: true}
	adopt := rerun.EntitiesWithInfo() > out.EntitiesWithInfo()
	if cls.QueryType.Targeted() {
		adopt = true
	}
	if o.fallbackPasses != nil {
		o.fallbackPasses.WithLabelValues(string(cls.QueryType), strconv.FormatBool(adopt)).Inc()
	}
	log.Info("unfiltered fallback pass",
		zap.String("query_type", string(cls.QueryType)),
		zap.Int("filtered_entities_with_info", out.EntitiesWithInfo()),
		zap.Int("unfiltered_entities_with_info", rerun.EntitiesWithInfo()),
		zap.Bool("adopted", adopt),
	)
	if adopt {
		return rerun
	}
	return out
}

func passStrategy(conds []filter.Condition) Strategy {
	if len(conds) == 0 {
		return StrategyEntityOnly
	}
	return StrategyFiltered
}

// runPass searches every entity concurrently and joins all results.
func (o *Orchestrator) runPass(
	ctx context.Context, vector []float32, entities []roster.Entity,
	conds []filter.Condition, strategy Strategy,
) []TargetResult {
	ctx, span := o.tracer.Start(ctx, "search.fanout", trace.WithAttributes(
		attribute.String("search.strategy", string(strategy)),
		attribute.Int("search.entities", len(entities)),
	))
	defer span.End()

	results := make([]TargetResult, len(entities))
	var wg sync.WaitGroup
	for i, e := range entities {
		task := func() {
			defer wg.Done()
			results[i] = o.searchEntity(ctx, vector, e, conds, strategy)
		}
		wg.Add(1)
		if o.pool == nil {
			go task()
			continue
		}
		if err := o.pool.Submit(task); err != nil {
			// Pool closed or overloaded; run inline so the pass still joins.
			task()
		}
	}
	wg.Wait()
	return results
}

// searchEntity is the leaf call: entity filter AND conds, then entity
// alone at the fallback limit when that returns nothing.
func (o *Orchestrator) searchEntity(
	ctx context.Context, vector []float32, e roster.Entity,
	conds []filter.Condition, strategy Strategy,
) TargetResult {
	ctx, span := o.tracer.Start(ctx, "search.entity", trace.WithAttributes(
		attribute.String("search.entity", e.Name),
	))
	defer span.End()

	log := logger.FromContext(ctx).With(zap.String("entity", e.Name))
	res := TargetResult{Entity: e, Strategy: strategy}

	entityCond, err := filter.NewMatch(document.FieldCandidate, e.Name)
	if err != nil {
		res.Err = err
		return res
	}

	docs, err := o.leaf(ctx, vector, append([]filter.Condition{entityCond}, conds...), o.cfg.PerEntityLimit)
	if err == nil && len(docs) == 0 && len(conds) > 0 {
		res.Strategy = StrategyEntityOnly
		docs, err = o.leaf(ctx, vector, []filter.Condition{entityCond}, o.cfg.FallbackLimit)
	}
	if err != nil {
		span.RecordError(err)
		o.countSearch(res.Strategy, "error")
		log.Warn("entity search failed", zap.String("strategy", string(res.Strategy)), zap.Error(err))
		res.Err = err
		return res
	}

	res.Documents = docs
	outcome := "hits"
	if len(docs) == 0 {
		outcome = "empty"
	}
	o.countSearch(res.Strategy, outcome)
	span.SetAttributes(attribute.Int("search.hits", len(docs)))
	log.Debug("entity searched", zap.String("strategy", string(res.Strategy)), zap.Int("hits", len(docs)))
	return res
}

func (o *Orchestrator) leaf(
	ctx context.Context, vector []float32, conds []filter.Condition, limit int,
) ([]document.Candidate, error) {
	expr, err := filter.NewExpression(conds...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.EntityTimeout)
	defer cancel()

	docs, err := o.retriever.Search(ctx, vector, expr, limit)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("entity search timed out after %s: %w", o.cfg.EntityTimeout, err)
		}
		return nil, err
	}
	return docs, nil
}

func (o *Orchestrator) countSearch(strategy Strategy, outcome string) {
	if o.entitySearches != nil {
		o.entitySearches.WithLabelValues(string(strategy), outcome).Inc()
	}
}
