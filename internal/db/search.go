package db

import "github.com/openprogramia/propuestas/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	Collection   string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
	EF           int // HNSW search-time candidate list size; 0 keeps the backend default
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search. Score is a similarity
// in [0,1], higher is closer. Field values keep the backend's native types.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]any
}

// CollectionSchema describes the searchable layout of a collection.
type CollectionSchema struct {
	Name          string
	KeywordFields []string
	TextFields    []string
	NumericFields []string
	VectorDim     int
}
