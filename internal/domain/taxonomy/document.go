package taxonomy

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Wire form of a taxonomy document. Categories and subcategories are
// mappings whose key order carries meaning, so they are walked as nodes
// instead of decoded into Go maps.
type rawTaxonomy struct {
	Version    string        `yaml:"version"`
	Categories rawCategories `yaml:"categories"`
	Metadata   rawMetadata   `yaml:"metadata"`
}

type rawMetadata struct {
	TotalCategories     int     `yaml:"total_categories"`
	TotalSubcategories  int     `yaml:"total_subcategories"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	FallbackCategory    string  `yaml:"fallback_category"`
}

type rawCategory struct {
	name string
	subs rawSubcategories
}

type rawSubcategory struct {
	name     string
	Keywords []string `yaml:"keywords"`
}

type rawCategories []rawCategory

func (c *rawCategories) UnmarshalYAML(node *yaml.Node) error {
	return eachPair(node, "categories", func(key string, value *yaml.Node) error {
		var body struct {
			Subcategories rawSubcategories `yaml:"subcategories"`
		}
		if err := value.Decode(&body); err != nil {
			return fmt.Errorf("category %q: %w", key, err)
		}
		*c = append(*c, rawCategory{name: key, subs: body.Subcategories})
		return nil
	})
}

type rawSubcategories []rawSubcategory

func (s *rawSubcategories) UnmarshalYAML(node *yaml.Node) error {
	return eachPair(node, "subcategories", func(key string, value *yaml.Node) error {
		sub := rawSubcategory{name: key}
		if err := value.Decode(&sub); err != nil {
			return fmt.Errorf("subcategory %q: %w", key, err)
		}
		*s = append(*s, sub)
		return nil
	})
}

func eachPair(node *yaml.Node, what string, fn func(key string, value *yaml.Node) error) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%s must be a mapping (line %d)", what, node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
