package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/domain/document"
)

func rankedDocs(entities []string, onPath int, score float64) []document.Ranked {
	docs := make([]document.Ranked, len(entities))
	for i, e := range entities {
		path := "Salud > Hospitales"
		if i < onPath {
			path = "Salud > Isapres"
		}
		docs[i] = document.Ranked{
			Candidate:  document.Candidate{Entity: e, TaxonomyPath: path},
			FinalScore: score,
		}
	}
	return docs
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, isapresResult(classification.General, 0.8))

	assert.Zero(t, s.TotalDocuments)
	assert.Empty(t, s.ByEntity)
	assert.NotNil(t, s.ByEntity)
	assert.Equal(t, CoverageNone, s.Coverage)
	assert.Equal(t, RecommendBroaden, s.Recommendation)
}

func TestSummarize(t *testing.T) {
	const jara, kast = "Jeannette Jara", "José Antonio Kast"

	tests := []struct {
		name           string
		entities       []string
		onPath         int
		confidence     float64
		wantCoverage   string
		wantRecommends string
	}{
		{"all on path", []string{jara, jara, kast, kast, kast}, 5, 0.8, CoverageHigh, RecommendSufficient},
		{"most on path single entity", []string{kast, kast, kast, kast, kast}, 3, 0.8, CoverageMedium, RecommendOtherCandidates},
		{"some on path low confidence", []string{jara, kast, jara, kast, jara}, 2, 0.2, CoveragePartial, RecommendRefine},
		{"few on path", []string{jara, kast, jara, kast, jara, kast, jara, kast, jara, kast}, 1, 0.8, CoverageLow, RecommendSufficient},
		{"too few documents", []string{jara, kast, jara}, 3, 0.9, CoverageHigh, RecommendBroaden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(rankedDocs(tt.entities, tt.onPath, 0.5), isapresResult(classification.General, tt.confidence))

			assert.Equal(t, len(tt.entities), s.TotalDocuments)
			assert.InDelta(t, float64(tt.onPath)/float64(len(tt.entities)), s.TaxonomyMatchRatio, 1e-9)
			assert.Equal(t, tt.wantCoverage, s.Coverage)
			assert.Equal(t, tt.wantRecommends, s.Recommendation)
		})
	}
}

func TestSummarize_PerEntity(t *testing.T) {
	docs := []document.Ranked{
		{Candidate: document.Candidate{Entity: "Evelyn Matthei", TaxonomyPath: "Salud > Isapres"}, FinalScore: 0.6},
		{Candidate: document.Candidate{Entity: "Evelyn Matthei", TaxonomyPath: "Salud"}, FinalScore: 0.4},
		{Candidate: document.Candidate{Entity: "Franco Parisi", TaxonomyPath: "Salud > Isapres"}, FinalScore: 0.3},
	}

	s := Summarize(docs, isapresResult(classification.Specific, 0.9))

	assert.Len(t, s.ByEntity, 2)
	m := s.ByEntity["Evelyn Matthei"]
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, 1, m.TaxonomyMatches)
	assert.InDelta(t, 0.5, m.AvgRelevance, 1e-9)
	assert.Equal(t, 1, s.ByEntity["Franco Parisi"].Count)
}
