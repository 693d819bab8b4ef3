package classify

import (
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
)

// Confidence bands of the filter policy.
const (
	generalCategoryAbove = 0.3
	specificPathAbove    = 0.7
	specificTagsAbove    = 0.4
	maxFilterTags        = 5
)

// GenerateFilters maps a classification to retrieval filters. Broad queries
// get at most a category filter; narrow queries tighten from category to
// tags to the exact taxonomy path as confidence grows.
func GenerateFilters(r classification.Result) []filter.Condition {
	qt := r.QueryType
	if qt == "" {
		qt = classification.Specific
	}

	var (
		cond filter.Condition
		err  error
	)
	switch {
	case qt == classification.General:
		if r.Confidence <= generalCategoryAbove {
			return []filter.Condition{}
		}
		cond, err = filter.NewMatch(document.FieldTopicCategory, r.Category)
	case r.Confidence > specificPathAbove:
		cond, err = filter.NewMatch(document.FieldTaxonomyPath, r.TaxonomyPath)
	case r.Confidence > specificTagsAbove && len(r.SuggestedTags) > 0:
		cond, err = filter.NewAnyOf(document.FieldTags, r.SuggestedTags[:min(maxFilterTags, len(r.SuggestedTags))]...)
	default:
		cond, err = filter.NewMatch(document.FieldTopicCategory, r.Category)
	}
	if err != nil {
		// Empty category or path: nothing to narrow on.
		return []filter.Condition{}
	}
	return []filter.Condition{cond}
}
