package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexForSchema(t *testing.T) {
	idx, err := IndexForSchema(&CollectionSchema{
		Name:          "programas",
		KeywordFields: []string{"candidate", "tags"},
		TextFields:    []string{"content"},
		NumericFields: []string{"page_number"},
		VectorDim:     1536,
	})
	require.NoError(t, err)

	assert.Equal(t, "programas:idx", idx.Name)
	assert.Equal(t, "programas:doc:", idx.Prefix)
	require.Len(t, idx.Fields, 5)
	assert.Equal(t, FieldTag, idx.Fields[0].Kind)
	assert.Equal(t, FieldText, idx.Fields[2].Kind)
	assert.Equal(t, FieldNumeric, idx.Fields[3].Kind)
	assert.Equal(t, IndexField{Name: VectorFieldName, Kind: FieldVector, VectorDim: 1536}, idx.Fields[4])
}

func TestIndexForSchema_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		schema  *CollectionSchema
		wantErr string
	}{
		{"nil", nil, "collection name is required"},
		{"no vector dim", &CollectionSchema{Name: "programas"}, "positive dimension"},
		{"bad name", &CollectionSchema{Name: "bad name", VectorDim: 3}, "invalid index name"},
		{"duplicate", &CollectionSchema{Name: "programas", KeywordFields: []string{"candidate"}, TextFields: []string{"candidate"}, VectorDim: 3}, "duplicate field"},
		{"reserved vector name", &CollectionSchema{Name: "programas", KeywordFields: []string{VectorFieldName}, VectorDim: 3}, "duplicate field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IndexForSchema(tt.schema)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIndexDefinition_Args(t *testing.T) {
	idx, err := IndexForSchema(&CollectionSchema{
		Name:          "programas",
		KeywordFields: []string{"candidate"},
		NumericFields: []string{"page_number"},
		VectorDim:     4,
	})
	require.NoError(t, err)

	want := "programas:idx ON HASH PREFIX 1 programas:doc: SCHEMA " +
		"candidate TAG SEPARATOR , CASESENSITIVE page_number NUMERIC " +
		"vector VECTOR HNSW 10 TYPE FLOAT32 DIM 4 DISTANCE_METRIC COSINE M 16 EF_CONSTRUCTION 200"
	assert.Equal(t, want, strings.Join(idx.Args(), " "))
	assert.Equal(t, "FT.CREATE "+want, idx.String())
}

func TestIsValidIdentifier(t *testing.T) {
	for _, s := range []string{"programas", "programas_2025", "prog:idx", "a-b"} {
		assert.True(t, IsValidIdentifier(s), s)
	}
	for _, s := range []string{"", "bad name", "programas*", "ñandú"} {
		assert.False(t, IsValidIdentifier(s), s)
	}
}
