package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/logger"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 4}}
	p := NewInstrumentedEmbedder(inner, "openai", "text-embedding-3-small")

	core, logs := observer.New(zap.DebugLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))

	result, err := p.Embed(ctx, "¿qué propone Jara sobre pensiones?")
	require.NoError(t, err)
	assert.Len(t, result.Embedding, 3)
	assert.Equal(t, 1, logs.FilterMessage("query embedded").Len())
}

func TestInstrumentedEmbedder_WrapsErrors(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	p := NewInstrumentedEmbedder(inner, "openai", "m")

	core, logs := observer.New(zap.DebugLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))

	_, err := p.Embed(ctx, "pensiones")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingProviderError))
	assert.Equal(t, 1, logs.FilterMessage("query embedding failed").Len())
}

func TestInstrumentedEmbedder_RejectsBlankText(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "openai", "m")

	_, err := p.Embed(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.Zero(t, inner.calls)
}

func TestInstrumentedEmbedder_LogsProviderFields(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}}
	p := NewInstrumentedEmbedder(inner, "openai", "e5-large")

	core, logs := observer.New(zap.DebugLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))

	_, err := p.Embed(ctx, "vivienda")
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "openai", fields["provider"])
	assert.Equal(t, "e5-large", fields["model"])
	assert.EqualValues(t, 2, fields["total_tokens"])
}
