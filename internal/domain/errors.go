package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty or malformed user query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidTaxonomy signals a taxonomy document that cannot be loaded.
	ErrInvalidTaxonomy = errors.New("invalid taxonomy")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRetrievalUnavailable signals that the vector store could not be reached.
	ErrRetrievalUnavailable = errors.New("retrieval backend unavailable")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
