// Package taxonomy holds the immutable two-level topic tree used to classify
// queries: category > subcategory > keywords.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/textnorm"
)

// FallbackSubcategory is paired with the fallback category when no
// subcategory clears the confidence threshold.
const FallbackSubcategory = "General"

// PathSeparator joins category and subcategory in a taxonomy path.
const PathSeparator = " > "

// DefaultConfidenceThreshold applies when the document leaves it unset.
const DefaultConfidenceThreshold = 0.25

// Path builds the "<category> > <subcategory>" label.
func Path(category, subcategory string) string {
	return category + PathSeparator + subcategory
}

// Taxonomy is read-only after Load; share it freely across goroutines.
type Taxonomy struct {
	version    string
	categories []Category
	index      map[string]int
	meta       Metadata
}

// Category is a top-level topic with its subcategories in document order.
type Category struct {
	Name          string
	Subcategories []Subcategory
}

// Subcategory is a leaf topic with its keyword set.
type Subcategory struct {
	Name     string
	Keywords []string

	normalized []string
}

// NormalizedKeywords returns the keywords folded by textnorm, index-aligned
// with Keywords.
func (s Subcategory) NormalizedKeywords() []string { return s.normalized }

// Metadata carries the classification knobs stored with the taxonomy.
type Metadata struct {
	TotalCategories     int
	TotalSubcategories  int
	ConfidenceThreshold float64
	FallbackCategory    string
}

// Info is the public summary of a loaded taxonomy.
type Info struct {
	Version             string   `json:"version"`
	TotalCategories     int      `json:"total_categories"`
	TotalSubcategories  int      `json:"total_subcategories"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	FallbackCategory    string   `json:"fallback_category"`
	Categories          []string `json:"categories"`
}

// Load reads and parses a taxonomy document (YAML or JSON) from path.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from trusted config
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a taxonomy document. Category and subcategory order follows
// the document, which makes tie-breaking deterministic.
func Parse(data []byte) (*Taxonomy, error) {
	var raw rawTaxonomy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidTaxonomy, err)
	}
	return build(raw)
}

func build(raw rawTaxonomy) (*Taxonomy, error) {
	if len(raw.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", domain.ErrInvalidTaxonomy)
	}

	t := &Taxonomy{
		version:    raw.Version,
		categories: make([]Category, 0, len(raw.Categories)),
		index:      make(map[string]int, len(raw.Categories)),
	}

	subTotal := 0
	for _, rc := range raw.Categories {
		name := strings.TrimSpace(rc.name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty category name", domain.ErrInvalidTaxonomy)
		}
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", domain.ErrInvalidTaxonomy, name)
		}

		cat := Category{Name: name, Subcategories: make([]Subcategory, 0, len(rc.subs))}
		seenSub := make(map[string]bool, len(rc.subs))
		for _, rs := range rc.subs {
			subName := strings.TrimSpace(rs.name)
			if subName == "" {
				return nil, fmt.Errorf("%w: empty subcategory name in %q", domain.ErrInvalidTaxonomy, name)
			}
			if seenSub[subName] {
				return nil, fmt.Errorf("%w: duplicate subcategory %q in %q", domain.ErrInvalidTaxonomy, subName, name)
			}
			seenSub[subName] = true
			cat.Subcategories = append(cat.Subcategories, newSubcategory(subName, rs.Keywords))
		}

		subTotal += len(cat.Subcategories)
		t.index[name] = len(t.categories)
		t.categories = append(t.categories, cat)
	}

	meta := Metadata{
		TotalCategories:     raw.Metadata.TotalCategories,
		TotalSubcategories:  raw.Metadata.TotalSubcategories,
		ConfidenceThreshold: raw.Metadata.ConfidenceThreshold,
		FallbackCategory:    strings.TrimSpace(raw.Metadata.FallbackCategory),
	}
	if meta.TotalCategories == 0 {
		meta.TotalCategories = len(t.categories)
	}
	if meta.TotalSubcategories == 0 {
		meta.TotalSubcategories = subTotal
	}
	if meta.ConfidenceThreshold == 0 {
		meta.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if meta.ConfidenceThreshold < 0 || meta.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("%w: confidence_threshold %v outside [0,1]",
			domain.ErrInvalidTaxonomy, meta.ConfidenceThreshold)
	}
	if meta.FallbackCategory == "" {
		return nil, fmt.Errorf("%w: fallback_category is required", domain.ErrInvalidTaxonomy)
	}
	t.meta = meta

	return t, nil
}

// newSubcategory keeps keywords in document order, dropping blanks and
// entries that fold to an already seen keyword.
func newSubcategory(name string, keywords []string) Subcategory {
	sub := Subcategory{Name: name}
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		norm := textnorm.Normalize(kw)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		sub.Keywords = append(sub.Keywords, kw)
		sub.normalized = append(sub.normalized, norm)
	}
	return sub
}

// Version returns the document version string.
func (t *Taxonomy) Version() string { return t.version }

// Metadata returns the classification knobs.
func (t *Taxonomy) Metadata() Metadata { return t.meta }

// Categories returns the categories in document order. Callers must not mutate it.
func (t *Taxonomy) Categories() []Category { return t.categories }

// Category looks up a category by exact name.
func (t *Taxonomy) Category(name string) (Category, bool) {
	i, ok := t.index[name]
	if !ok {
		return Category{}, false
	}
	return t.categories[i], true
}

// Subcategory looks up a subcategory by exact category and subcategory names.
func (t *Taxonomy) Subcategory(category, name string) (Subcategory, bool) {
	cat, ok := t.Category(category)
	if !ok {
		return Subcategory{}, false
	}
	for _, s := range cat.Subcategories {
		if s.Name == name {
			return s, true
		}
	}
	return Subcategory{}, false
}

// Info summarizes the taxonomy for API and tool consumers.
func (t *Taxonomy) Info() Info {
	names := make([]string, len(t.categories))
	for i, c := range t.categories {
		names[i] = c.Name
	}
	return Info{
		Version:             t.version,
		TotalCategories:     t.meta.TotalCategories,
		TotalSubcategories:  t.meta.TotalSubcategories,
		ConfidenceThreshold: t.meta.ConfidenceThreshold,
		FallbackCategory:    t.meta.FallbackCategory,
		Categories:          names,
	}
}
