package domain

import (
	"context"
	"fmt"
	"strings"
)

// Embedder turns a search query into the vector space of the indexed
// program fragments.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult is a query vector plus the provider tokens it cost. Cached
// vectors report zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// QueryEmbedder prepares queries for asymmetric retrieval models: it collapses
// whitespace and prepends the model's query instruction ("query: " for e5).
type QueryEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder wraps inner. An empty instruction only normalizes
// whitespace.
func NewInstructionEmbedder(inner Embedder, instruction string) *QueryEmbedder {
	return &QueryEmbedder{inner: inner, instruction: instruction}
}

// Embed embeds the prepared query.
func (e *QueryEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	prepared := e.instruction + strings.Join(strings.Fields(text), " ")
	res, err := e.inner.Embed(ctx, prepared)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("query embed: %w", err)
	}
	return res, nil
}
