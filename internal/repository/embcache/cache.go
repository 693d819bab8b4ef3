// Package embcache keeps query embeddings in Redis so repeated citizen
// questions skip the provider round trip.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/openprogramia/propuestas/internal/db"
	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/logger"
)

const keyPrefix = "propuestas:emb:"

// kv is the slice of the Redis facade the cache needs.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config describes the cached model. Dimensions of 0 accepts any vector length.
type Config struct {
	Model      string
	Dimensions int
	TTL        time.Duration
}

// Embedder is a read-through cache in front of a domain.Embedder. Concurrent
// lookups of the same query share one provider call.
type Embedder struct {
	inner  domain.Embedder
	kv     kv
	cfg    Config
	flight singleflight.Group

	lookups *prometheus.CounterVec
}

// New wraps inner with a cache stored in kv.
func New(inner domain.Embedder, store kv, cfg Config) *Embedder {
	return &Embedder{inner: inner, kv: store, cfg: cfg}
}

// WithMetrics counts lookups by result: hit, miss or stale.
func (e *Embedder) WithMetrics(lookups *prometheus.CounterVec) *Embedder {
	e.lookups = lookups
	return e
}

// Embed serves text from the cache when possible. Hits carry no token usage.
// Redis failures degrade to a provider call and are only logged.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := e.key(text)

	if vec, ok := e.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	v, err, _ := e.flight.Do(key, func() (any, error) {
		res, err := e.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		e.store(ctx, key, res.Embedding)
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}
	return v.(domain.EmbeddingResult), nil
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.cfg.Model + "\x00" + text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (e *Embedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	log := logger.FromContext(ctx)

	raw, err := e.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound) || (err == nil && len(raw) == 0):
		e.observe("miss")
		return nil, false
	case err != nil:
		log.Warn("embedding cache read failed", zap.String("key", key), zap.Error(err))
		e.observe("miss")
		return nil, false
	}

	vec, err := decodeVector(raw)
	if err != nil || (e.cfg.Dimensions > 0 && len(vec) != e.cfg.Dimensions) {
		log.Debug("discarding stale cached embedding", zap.String("key", key), zap.Int("dims", len(vec)), zap.Error(err))
		e.observe("stale")
		return nil, false
	}
	e.observe("hit")
	return vec, true
}

func (e *Embedder) store(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := e.kv.SetWithTTL(ctx, key, encodeVector(vec), e.cfg.TTL); err != nil {
		logger.FromContext(ctx).Warn("embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (e *Embedder) observe(result string) {
	if e.lookups != nil {
		e.lookups.WithLabelValues(result).Inc()
	}
}

// encodeVector lays the vector out as little-endian float32, the same layout
// the Redis vector index uses.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("cached embedding has %d bytes, not a float32 multiple", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
