package search

import (
	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
)

// Coverage labels.
const (
	CoverageHigh    = "alta"
	CoverageMedium  = "media"
	CoveragePartial = "parcial"
	CoverageLow     = "baja"
	CoverageNone    = "sin_resultados"
)

// Recommendations for the caller's next step.
const (
	RecommendBroaden         = "ampliar_busqueda"
	RecommendRefine          = "refinar_consulta"
	RecommendOtherCandidates = "buscar_otros_candidatos"
	RecommendSufficient      = "suficiente"
)

const (
	minDocsForSufficient = 5
	refineBelow          = 0.3
)

// EntitySummary aggregates one entity's ranked documents.
type EntitySummary struct {
	Count           int     `json:"count"`
	TaxonomyMatches int     `json:"taxonomy_matches"`
	AvgRelevance    float64 `json:"avg_relevance"`
}

// Summary describes what a search found.
type Summary struct {
	TotalDocuments     int                      `json:"total_documents"`
	ByEntity           map[string]EntitySummary `json:"by_candidate"`
	TaxonomyMatchRatio float64                  `json:"taxonomy_match_ratio"`
	Coverage           string                   `json:"coverage"`
	Recommendation     string                   `json:"recommendation"`
}

// Summarize aggregates ranked documents per entity and labels coverage by
// the share of documents on the classified taxonomy path.
func Summarize(docs []document.Ranked, cls classification.Result) Summary {
	s := Summary{ByEntity: map[string]EntitySummary{}}
	if len(docs) == 0 {
		s.Coverage = CoverageNone
		s.Recommendation = RecommendBroaden
		return s
	}

	sums := make(map[string]float64)
	matches := 0
	for _, d := range docs {
		es := s.ByEntity[d.Entity]
		es.Count++
		if d.TaxonomyPath == cls.TaxonomyPath {
			es.TaxonomyMatches++
			matches++
		}
		sums[d.Entity] += d.FinalScore
		s.ByEntity[d.Entity] = es
	}
	for name, es := range s.ByEntity {
		es.AvgRelevance = sums[name] / float64(es.Count)
		s.ByEntity[name] = es
	}

	s.TotalDocuments = len(docs)
	s.TaxonomyMatchRatio = float64(matches) / float64(len(docs))
	s.Coverage = coverageLabel(s.TaxonomyMatchRatio)
	s.Recommendation = recommend(len(docs), len(s.ByEntity), cls.Confidence)
	return s
}

func coverageLabel(ratio float64) string {
	switch {
	case ratio >= 0.8:
		return CoverageHigh
	case ratio >= 0.5:
		return CoverageMedium
	case ratio < 0.2:
		return CoverageLow
	default:
		return CoveragePartial
	}
}

func recommend(docs, entities int, confidence float64) string {
	switch {
	case docs < minDocsForSufficient:
		return RecommendBroaden
	case confidence < refineBelow:
		return RecommendRefine
	case entities == 1:
		return RecommendOtherCandidates
	default:
		return RecommendSufficient
	}
}
