// Package embedding traces and logs query embedding.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/logger"
)

const tracerName = "github.com/openprogramia/propuestas/internal/usecase/embedding"

// InstrumentedEmbedder opens an "embedding.embed" span around the inner
// embedder, which sits above the Redis cache so hits are traced too.
// Provider counters live in the transport client.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	attrs  []attribute.KeyValue
	fields []zap.Field
	tracer trace.Tracer
}

// NewInstrumentedEmbedder wraps inner.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner: inner,
		attrs: []attribute.KeyValue{
			attribute.String("embedding.provider", provider),
			attribute.String("embedding.model", model),
		},
		fields: []zap.Field{zap.String("provider", provider), zap.String("model", model)},
		tracer: otel.Tracer(tracerName),
	}
}

// Embed fails with domain.ErrInvalidQuery on blank text without calling inner.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("nothing to embed: %w", domain.ErrInvalidQuery)
	}

	ctx, span := p.tracer.Start(ctx, "embedding.embed", trace.WithAttributes(p.attrs...))
	defer span.End()
	span.SetAttributes(attribute.Int("embedding.input_runes", utf8.RuneCountInString(text)))

	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	log := logger.FromContext(ctx).With(p.fields...).With(zap.Duration("duration", time.Since(start)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		log.Error("query embedding failed", zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	span.SetAttributes(
		attribute.Int("embedding.dimensions", len(res.Embedding)),
		attribute.Int("embedding.total_tokens", res.TotalTokens),
	)
	log.Debug("query embedded",
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}
