package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openprogramia/propuestas/internal/domain/classification"
)

func TestExpand_HighConfidenceBorrowsSibling(t *testing.T) {
	c := newTestClassifier(t)
	r := c.Classify(context.Background(), "isapre", "")

	got := c.Expand("isapre", r)

	assert.Equal(t, "isapre plan de salud seguro privado cotización salud fonasa", got)
}

func TestExpand_MediumConfidenceUsesMinimum(t *testing.T) {
	c := newTestClassifier(t)
	r := c.Classify(context.Background(), "Isapres", "")

	got := c.Expand("Isapres", r)

	assert.Equal(t, "Isapres plan de salud seguro privado", got)
}

func TestExpand_SkipsKeywordsSharingQueryTokens(t *testing.T) {
	c := newTestClassifier(t)
	r := classification.Result{Category: "Salud", Subcategory: "Isapres", Confidence: 0.5}

	got := c.Expand("plan isapre", r)

	// "plan de salud" shares "plan"; "isapre" is already present.
	assert.Equal(t, "plan isapre seguro privado cotización salud", got)
}

func TestExpand_NoOp(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name string
		r    classification.Result
	}{
		{"low confidence", classification.Result{Category: "Salud", Subcategory: "Isapres", Confidence: 0.19}},
		{"fallback subcategory", classification.Result{Category: "Institucionalidad", Subcategory: "General", Confidence: 0.9}},
		{"unknown subcategory", classification.Result{Category: "Salud", Subcategory: "Dental", Confidence: 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "isapre", c.Expand("isapre", tt.r))
		})
	}
}

func TestExpand_Bounded(t *testing.T) {
	c := newTestClassifier(t)
	for _, conf := range []float64{0.2, 0.35, 0.5, 0.69, 0.71, 0.9, 1} {
		r := classification.Result{Category: "Pensiones", Subcategory: "AFP", Confidence: conf}
		picked := c.expansionKeywords("jubilación", r)
		assert.NotEmpty(t, picked, "conf %v", conf)
		assert.LessOrEqual(t, len(picked), expansionLimit(conf), "conf %v", conf)
	}
}

func TestExpansionLimit(t *testing.T) {
	assert.Equal(t, 2, expansionLimit(0.2))
	assert.Equal(t, 2, expansionLimit(0.49))
	assert.Equal(t, 3, expansionLimit(0.5))
	assert.Equal(t, 4, expansionLimit(0.7535))
	assert.Equal(t, 5, expansionLimit(0.9))
	assert.Equal(t, 5, expansionLimit(1))
}
