package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Layout of a collection in Redis: documents are HASH keys "<c>:doc:<id>"
// covered by the FT index "<c>:idx".
const (
	VectorFieldName = "vector"
	indexSuffix     = ":idx"
	docInfix        = ":doc:"

	tagSeparator   = ","
	hnswM          = 16
	hnswConstruct  = 200
	distanceCosine = "COSINE"
)

// IndexName is the FT index backing a collection.
func IndexName(collection string) string { return collection + indexSuffix }

// KeyPrefix is the hash key prefix of a collection's documents.
func KeyPrefix(collection string) string { return collection + docInfix }

// FieldKind is the FT schema type of an indexed field.
type FieldKind string

// Field kinds, spelled as FT.CREATE expects them.
const (
	FieldTag     FieldKind = "TAG"
	FieldText    FieldKind = "TEXT"
	FieldNumeric FieldKind = "NUMERIC"
	FieldVector  FieldKind = "VECTOR"
)

// IndexField is one attribute of an FT index. Tags are case-sensitive so
// candidate names and taxonomy paths match exactly; vectors are HNSW cosine.
type IndexField struct {
	Name      string
	Kind      FieldKind
	VectorDim int
}

// IndexDefinition is an FT index over the HASH documents of one collection.
type IndexDefinition struct {
	Name   string
	Prefix string
	Fields []IndexField
}

// IndexForSchema lays out the FT index for a collection: keyword fields as
// tags, then text, numeric and finally the embedding.
func IndexForSchema(s *CollectionSchema) (*IndexDefinition, error) {
	if s == nil || s.Name == "" {
		return nil, errors.New("collection name is required")
	}
	def := &IndexDefinition{Name: IndexName(s.Name), Prefix: KeyPrefix(s.Name)}
	add := func(kind FieldKind, names []string) {
		for _, n := range names {
			def.Fields = append(def.Fields, IndexField{Name: n, Kind: kind})
		}
	}
	add(FieldTag, s.KeywordFields)
	add(FieldText, s.TextFields)
	add(FieldNumeric, s.NumericFields)
	def.Fields = append(def.Fields, IndexField{Name: VectorFieldName, Kind: FieldVector, VectorDim: s.VectorDim})

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Validate checks names, uniqueness and the vector dimension.
func (d *IndexDefinition) Validate() error {
	if !IsValidIdentifier(d.Name) {
		return fmt.Errorf("invalid index name %q", d.Name)
	}
	if len(d.Fields) == 0 {
		return errors.New("index has no fields")
	}
	seen := make(map[string]bool, len(d.Fields))
	for i, f := range d.Fields {
		switch {
		case f.Name == "":
			return fmt.Errorf("field %d has no name", i)
		case seen[f.Name]:
			return fmt.Errorf("duplicate field %q", f.Name)
		case f.Kind == FieldVector && f.VectorDim <= 0:
			return fmt.Errorf("vector field %q needs a positive dimension", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Args renders the FT.CREATE arguments, without the command name.
func (d *IndexDefinition) Args() []string {
	args := []string{d.Name, "ON", "HASH"}
	if d.Prefix != "" {
		args = append(args, "PREFIX", "1", d.Prefix)
	}
	args = append(args, "SCHEMA")
	for _, f := range d.Fields {
		args = append(args, f.Name, string(f.Kind))
		switch f.Kind {
		case FieldTag:
			args = append(args, "SEPARATOR", tagSeparator, "CASESENSITIVE")
		case FieldVector:
			attrs := []string{
				"TYPE", "FLOAT32",
				"DIM", strconv.Itoa(f.VectorDim),
				"DISTANCE_METRIC", distanceCosine,
				"M", strconv.Itoa(hnswM),
				"EF_CONSTRUCTION", strconv.Itoa(hnswConstruct),
			}
			args = append(args, "HNSW", strconv.Itoa(len(attrs)))
			args = append(args, attrs...)
		}
	}
	return args
}

func (d *IndexDefinition) String() string {
	return "FT.CREATE " + strings.Join(d.Args(), " ")
}

// IsValidIdentifier reports whether s is a usable collection or index name:
// ASCII letters, digits, '_', ':' and '-'.
func IsValidIdentifier(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == ':' || r == '-')
	}) < 0
}
