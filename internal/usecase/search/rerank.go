package search

import (
	"math"
	"slices"
	"strings"

	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
	"github.com/openprogramia/propuestas/internal/textnorm"
)

// Hybrid score weights.
const (
	weightSemantic   = 0.5
	weightTagContent = 0.2
	weightTaxonomy   = 0.15
	weightDiversity  = 0.1
	weightHeader     = 0.05

	taxonomyExactBonus = 0.15
	verbatimBoost      = 1.2
	verbatimMinLen     = 8

	diversityBase    = 0.08
	diversityFloor   = 0.01
	earlyRankBonus   = 0.02
	earlyRankCeiling = 5
)

// DiversityBonus favours entities seen fewer times so far and the first
// ranks. occurrences counts the entity's documents up to and including
// this one; rank is zero-based. The result lies in [0.01, 0.10].
func DiversityBonus(occurrences, rank int) float64 {
	occurrences = max(occurrences, 1)
	bonus := min(diversityBase, diversityBase/math.Sqrt(float64(occurrences)))
	if rank >= 0 && rank < earlyRankCeiling {
		bonus += earlyRankBonus / float64(rank+1)
	}
	return max(diversityFloor, bonus)
}

// queryTerms holds the normalized query in the forms the scorers need.
type queryTerms struct {
	full   string
	words  []string // tokens longer than two runes
	strong []string // tokens longer than three runes
}

func newQueryTerms(query string) queryTerms {
	q := queryTerms{full: textnorm.Normalize(query)}
	for _, w := range strings.Fields(q.full) {
		n := textnorm.RuneLen(w)
		if n > 2 {
			q.words = append(q.words, w)
		}
		if n > 3 {
			q.strong = append(q.strong, w)
		}
	}
	return q
}

// Rerank scores docs against the query and classification and returns them
// sorted by final score, highest first. Ties keep the semantic order.
func Rerank(docs []document.Candidate, query string, cls classification.Result) []document.Ranked {
	if len(docs) == 0 {
		return []document.Ranked{}
	}
	q := newQueryTerms(query)

	ordered := slices.Clone(docs)
	slices.SortStableFunc(ordered, func(a, b document.Candidate) int {
		switch {
		case a.VectorScore > b.VectorScore:
			return -1
		case a.VectorScore < b.VectorScore:
			return 1
		default:
			return 0
		}
	})

	seen := make(map[string]int, len(ordered))
	ranked := make([]document.Ranked, len(ordered))
	for rank, d := range ordered {
		seen[d.Entity]++
		b := document.ScoreBreakdown{
			Semantic:   d.VectorScore,
			TagContent: tagContentMatch(d, q),
			Diversity:  DiversityBonus(seen[d.Entity], rank),
			Header:     headerMatch(d, q),
		}
		if cls.TaxonomyPath != "" && d.TaxonomyPath == cls.TaxonomyPath {
			b.TaxonomyBonus = taxonomyExactBonus
		}
		ranked[rank] = document.Ranked{
			Candidate:  d,
			FinalScore: finalScore(b),
			Breakdown:  b,
		}
	}

	slices.SortStableFunc(ranked, func(a, b document.Ranked) int {
		switch {
		case a.FinalScore > b.FinalScore:
			return -1
		case a.FinalScore < b.FinalScore:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

func finalScore(b document.ScoreBreakdown) float64 {
	return weightSemantic*b.Semantic +
		weightTagContent*b.TagContent +
		weightTaxonomy*b.TaxonomyBonus +
		weightDiversity*b.Diversity +
		weightHeader*b.Header
}

// tagContentMatch mixes the share of tags mentioning a query word with the
// share of strong query words present in the content.
func tagContentMatch(d document.Candidate, q queryTerms) float64 {
	tags := make([]string, len(d.Tags))
	for i, t := range d.Tags {
		tags[i] = textnorm.Normalize(t)
	}
	content := textnorm.Normalize(d.Content)

	var tagShare float64
	if len(tags) > 0 && len(q.words) > 0 {
		hits := 0
		for _, t := range tags {
			if containsAny(t, q.words) {
				hits++
			}
		}
		tagShare = float64(hits) / float64(len(tags))
	}

	var contentShare float64
	if len(q.strong) > 0 {
		hits := 0
		for _, w := range q.strong {
			if strings.Contains(content, w) {
				hits++
			}
		}
		contentShare = float64(hits) / float64(len(q.strong))
	}

	score := 0.7*tagShare + 0.3*contentShare
	if textnorm.RuneLen(q.full) > verbatimMinLen && verbatim(q.full, content, tags) {
		score = min(1, score*verbatimBoost)
	}
	return score
}

func verbatim(query, content string, tags []string) bool {
	if strings.Contains(content, query) {
		return true
	}
	for _, t := range tags {
		if strings.Contains(t, query) {
			return true
		}
	}
	return false
}

func headerMatch(d document.Candidate, q queryTerms) float64 {
	if len(d.Headers) == 0 || len(q.words) == 0 {
		return 0
	}
	headers := textnorm.Normalize(d.HeaderText())
	hits := 0
	for _, w := range q.words {
		if strings.Contains(headers, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(q.words))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
