// Package classify maps free-text queries onto the taxonomy, derives the
// retrieval filters for a classification and expands queries with taxonomy
// keywords.
package classify

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
	"github.com/openprogramia/propuestas/internal/logger"
	"github.com/openprogramia/propuestas/internal/textnorm"
)

// Classifier is safe for concurrent use. The taxonomy is shared read-only;
// the cache serializes its own access.
type Classifier struct {
	taxonomy *taxonomy.Taxonomy
	cache    *Cache
	rules    []Rule

	classifications *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// New creates a Classifier over tax with the default rule table.
func New(tax *taxonomy.Taxonomy, cache *Cache) *Classifier {
	if cache == nil {
		cache = NewCache(DefaultCacheTTL, DefaultCacheEntries)
	}
	return &Classifier{
		taxonomy: tax,
		cache:    cache,
		rules:    DefaultRules(),
	}
}

// WithRules replaces the query-type rule table.
func (c *Classifier) WithRules(rules []Rule) *Classifier {
	c.rules = rules
	return c
}

// WithMetrics records classifications by outcome and cache lookups by result.
func (c *Classifier) WithMetrics(classifications, cacheLookups *prometheus.CounterVec) *Classifier {
	c.classifications = classifications
	c.cacheLookups = cacheLookups
	return c
}

// Taxonomy returns the taxonomy the classifier runs on.
func (c *Classifier) Taxonomy() *taxonomy.Taxonomy { return c.taxonomy }

// Classify maps query onto the taxonomy. An empty qt means "detect from the
// query". Cached results are reused as-is apart from the query type.
func (c *Classifier) Classify(ctx context.Context, query string, qt classification.QueryType) classification.Result {
	log := logger.FromContext(ctx)

	if strings.TrimSpace(query) == "" {
		if qt == "" {
			qt = classification.General
		}
		return c.fallback(qt)
	}
	if qt == "" {
		qt = DetectQueryType(query, c.rules)
	}

	key := textnorm.Normalize(query)
	if cached, ok := c.cache.Get(key); ok {
		c.observeCache("hit")
		return cached.WithQueryType(qt)
	}
	c.observeCache("miss")

	keywords := textnorm.ExtractKeywords(query)
	best := bestMatch(c.taxonomy, keywords)
	conf := confidence(best, keywords)

	meta := c.taxonomy.Metadata()
	category, subcategory := best.category, best.subcategory
	outcome := "matched"
	if conf < meta.ConfidenceThreshold || category == "" {
		category, subcategory = meta.FallbackCategory, taxonomy.FallbackSubcategory
		outcome = "fallback"
	}

	matched := best.matched
	if matched == nil {
		matched = []string{}
	}
	result := classification.Result{
		Category:        category,
		Subcategory:     subcategory,
		TaxonomyPath:    taxonomy.Path(category, subcategory),
		Confidence:      conf,
		MatchedKeywords: matched,
		SuggestedTags:   suggestedTags(category, subcategory, matched),
		QueryType:       qt,
	}
	result.Filters = GenerateFilters(result)

	c.cache.Set(key, result)
	if c.classifications != nil {
		c.classifications.WithLabelValues(outcome, string(qt)).Inc()
	}

	log.Debug("query classified",
		zap.String("taxonomy_path", result.TaxonomyPath),
		zap.Float64("confidence", conf),
		zap.String("query_type", string(qt)),
		zap.Strings("matched_keywords", matched),
		zap.Int("filters", len(result.Filters)),
	)
	return result
}

func (c *Classifier) fallback(qt classification.QueryType) classification.Result {
	meta := c.taxonomy.Metadata()
	return classification.Result{
		Category:        meta.FallbackCategory,
		Subcategory:     taxonomy.FallbackSubcategory,
		TaxonomyPath:    taxonomy.Path(meta.FallbackCategory, taxonomy.FallbackSubcategory),
		MatchedKeywords: []string{},
		SuggestedTags:   []string{},
		Filters:         []filter.Condition{},
		QueryType:       qt,
	}
}

// ClearCache drops every cached classification.
func (c *Classifier) ClearCache() { c.cache.Clear() }

// CacheStats reports cache occupancy.
func (c *Classifier) CacheStats() CacheStats { return c.cache.Stats() }

func (c *Classifier) observeCache(result string) {
	if c.cacheLookups != nil {
		c.cacheLookups.WithLabelValues(result).Inc()
	}
}
