package classify

import (
	"math"
	"slices"
	"strings"

	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
	"github.com/openprogramia/propuestas/internal/textnorm"
)

const (
	expandMinConfidence  = 0.2
	siblingMinConfidence = 0.7
	expandMinKeywordLen  = 4
	siblingMinKeywordLen = 5
	expandMinKeywords    = 2
	expandMaxKeywords    = 5
)

// Expand appends keywords of the classified subcategory that the query does
// not already carry. High-confidence classifications may borrow one keyword
// from the first sibling subcategory when room is left.
func (c *Classifier) Expand(query string, r classification.Result) string {
	picked := c.expansionKeywords(query, r)
	if len(picked) == 0 {
		return query
	}
	return query + " " + strings.Join(picked, " ")
}

func (c *Classifier) expansionKeywords(query string, r classification.Result) []string {
	if r.Confidence < expandMinConfidence {
		return nil
	}
	cat, ok := c.taxonomy.Category(r.Category)
	if !ok {
		return nil
	}
	i := slices.IndexFunc(cat.Subcategories, func(s taxonomy.Subcategory) bool { return s.Name == r.Subcategory })
	if i < 0 {
		return nil
	}
	sub := cat.Subcategories[i]

	folded := textnorm.Normalize(query)
	queryKeywords := textnorm.ExtractKeywords(query)

	var picked []string
	normalized := sub.NormalizedKeywords()
	for j, kw := range sub.Keywords {
		nk := normalized[j]
		if strings.Contains(folded, nk) || textnorm.RuneLen(kw) < expandMinKeywordLen {
			continue
		}
		if slices.ContainsFunc(strings.Fields(nk), func(w string) bool { return slices.Contains(queryKeywords, w) }) {
			continue
		}
		picked = append(picked, kw)
	}
	slices.SortStableFunc(picked, func(a, b string) int { return textnorm.RuneLen(a) - textnorm.RuneLen(b) })

	limit := expansionLimit(r.Confidence)
	picked = picked[:min(limit, len(picked))]

	if r.Confidence > siblingMinConfidence && len(picked) < limit {
		if kw, ok := siblingKeyword(cat, i, folded); ok && !slices.Contains(picked, kw) {
			picked = append(picked, kw)
		}
	}

	return picked
}

func expansionLimit(conf float64) int {
	return max(expandMinKeywords, min(expandMaxKeywords, int(math.Floor(conf*6))))
}

// siblingKeyword returns the first keyword of the first other subcategory in
// the category, if it is long enough and absent from the query.
func siblingKeyword(cat taxonomy.Category, self int, foldedQuery string) (string, bool) {
	for j, s := range cat.Subcategories {
		if j == self {
			continue
		}
		if len(s.Keywords) == 0 {
			return "", false
		}
		kw := s.Keywords[0]
		if strings.Contains(foldedQuery, s.NormalizedKeywords()[0]) || textnorm.RuneLen(kw) < siblingMinKeywordLen {
			return "", false
		}
		return kw, true
	}
	return "", false
}
