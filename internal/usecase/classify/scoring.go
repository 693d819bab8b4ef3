package classify

import (
	"slices"
	"strings"

	"github.com/openprogramia/propuestas/internal/domain/taxonomy"
	"github.com/openprogramia/propuestas/internal/textnorm"
)

const (
	exactMatchScore   = 2.0
	partialMatchScale = 0.7

	weightKeywordCoverage  = 0.4
	weightTaxonomyCoverage = 0.3
	weightMatchQuality     = 0.2
	weightComplexity       = 0.1

	politicalBoost = 1.1
	exactBoostStep = 0.1
	citizenBoost   = 1.08

	// Confidence below this floor is reported as zero.
	confidenceFloor = 0.06
)

var politicalVocabulary = []string{"candidato", "propone", "programa", "gobierno", "politica"}

// Matched as substrings of query keywords.
var citizenMarkers = []string{"caro", "barato", "alcanza", "falta", "necesito", "problema", "crisis", "mal"}

// match is the lexical evidence for one subcategory.
type match struct {
	category    string
	subcategory string
	score       float64
	matched     []string // taxonomy spelling, first-match order, distinct
	keywords    int      // subcategory keyword count
}

// scoreSubcategory compares every query keyword with every subcategory
// keyword: equality scores 2.0, containment either way scores
// 0.7 times the shorter/longer length ratio.
func scoreSubcategory(queryKeywords []string, sub taxonomy.Subcategory) match {
	m := match{subcategory: sub.Name, keywords: len(sub.Keywords)}
	normalized := sub.NormalizedKeywords()
	seen := make(map[int]bool, len(normalized))

	for _, q := range queryKeywords {
		qLen := textnorm.RuneLen(q)
		for i, kw := range normalized {
			switch {
			case q == kw:
				m.score += exactMatchScore
			case strings.Contains(q, kw) || strings.Contains(kw, q):
				kwLen := textnorm.RuneLen(kw)
				m.score += float64(min(qLen, kwLen)) / float64(max(qLen, kwLen)) * partialMatchScale
			default:
				continue
			}
			if !seen[i] {
				seen[i] = true
				m.matched = append(m.matched, sub.Keywords[i])
			}
		}
	}
	return m
}

// bestMatch scans the taxonomy in document order; a later subcategory must
// score strictly higher to replace the current best.
func bestMatch(tax *taxonomy.Taxonomy, queryKeywords []string) match {
	var best match
	for _, cat := range tax.Categories() {
		for _, sub := range cat.Subcategories {
			m := scoreSubcategory(queryKeywords, sub)
			if m.score > best.score {
				m.category = cat.Name
				best = m
			}
		}
	}
	return best
}

// confidence blends four factors, each clamped to [0,1], then applies the
// political, exact-match and citizen-language boosts.
func confidence(m match, queryKeywords []string) float64 {
	if m.score == 0 {
		return 0
	}
	matched := float64(len(m.matched))
	queryCount := float64(len(queryKeywords))

	keywordCoverage := clamp01(matched / max(queryCount, 1))
	taxonomyCoverage := clamp01(matched / max(float64(m.keywords), 1))
	// Matched keywords are reported in taxonomy spelling, so each one is an
	// exact taxonomy hit even when the query only contained an inflection.
	exact := matched
	matchQuality := clamp01(exact / max(matched, 1))
	complexity := min(queryCount/10, 0.1)

	c := keywordCoverage*weightKeywordCoverage +
		taxonomyCoverage*weightTaxonomyCoverage +
		matchQuality*weightMatchQuality +
		complexity*weightComplexity

	if hasPoliticalVocabulary(queryKeywords) {
		c = min(c*politicalBoost, 1)
	}
	if exact > 0 {
		c = min(c*(1+exactBoostStep*exact), 1)
	}
	if hasCitizenLanguage(queryKeywords) {
		c = min(c*citizenBoost, 1)
	}

	if c < confidenceFloor {
		return 0
	}
	return clamp01(c)
}

func hasPoliticalVocabulary(keywords []string) bool {
	for _, kw := range keywords {
		if slices.Contains(politicalVocabulary, kw) {
			return true
		}
	}
	return false
}

func hasCitizenLanguage(keywords []string) bool {
	for _, kw := range keywords {
		for _, marker := range citizenMarkers {
			if strings.Contains(kw, marker) {
				return true
			}
		}
	}
	return false
}

// maxSuggestedTags caps SuggestedTags.
const maxSuggestedTags = 10

// suggestedTags returns the normalized category, subcategory and matched
// keywords longer than two runes, deduplicated, capped at ten.
func suggestedTags(category, subcategory string, matched []string) []string {
	tags := make([]string, 0, maxSuggestedTags)
	add := func(tag string) {
		if tag == "" || slices.Contains(tags, tag) || len(tags) == maxSuggestedTags {
			return
		}
		tags = append(tags, tag)
	}
	add(textnorm.Normalize(category))
	add(textnorm.Normalize(subcategory))
	for _, kw := range matched {
		if n := textnorm.Normalize(kw); textnorm.RuneLen(n) >= textnorm.MinKeywordLen {
			add(n)
		}
	}
	return tags
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
