// Package classification defines the outcome of mapping a query onto the taxonomy.
package classification

import (
	"fmt"
	"slices"

	"github.com/openprogramia/propuestas/internal/domain/search/filter"
)

// QueryType selects how the search pipeline fans out across entities.
type QueryType string

const (
	// General queries survey every entity in the roster.
	General QueryType = "general"
	// Specific queries target named entities, or the whole roster when none are named.
	Specific QueryType = "specific"
	// Comparative is accepted from callers and handled exactly like Specific.
	Comparative QueryType = "comparative"
)

// ParseQueryType validates a caller-supplied query type. The empty string
// means "detect from the query text".
func ParseQueryType(s string) (QueryType, error) {
	switch QueryType(s) {
	case "", General, Specific, Comparative:
		return QueryType(s), nil
	default:
		return "", fmt.Errorf("unknown query type %q", s)
	}
}

// Targeted reports whether the type restricts the fan-out to named entities.
func (q QueryType) Targeted() bool {
	return q == Specific || q == Comparative
}

// Result is the classification of one query. A zero Confidence marks the
// fallback classification.
type Result struct {
	Category        string             `json:"category"`
	Subcategory     string             `json:"subcategory"`
	TaxonomyPath    string             `json:"taxonomy_path"`
	Confidence      float64            `json:"confidence"`
	MatchedKeywords []string           `json:"matched_keywords"`
	SuggestedTags   []string           `json:"suggested_tags"`
	Filters         []filter.Condition `json:"filters"`
	QueryType       QueryType          `json:"query_type"`
}

// Clone returns a copy that shares no slices with r.
func (r Result) Clone() Result {
	r.MatchedKeywords = slices.Clone(r.MatchedKeywords)
	r.SuggestedTags = slices.Clone(r.SuggestedTags)
	r.Filters = slices.Clone(r.Filters)
	return r
}

// WithQueryType returns a copy of r carrying qt.
func (r Result) WithQueryType(qt QueryType) Result {
	c := r.Clone()
	c.QueryType = qt
	return c
}
