package domain

import (
	"context"
	"sync/atomic"
)

type usageKey struct{}

// EmbeddingUsage tallies provider tokens spent while serving one request.
// The transport attaches it before calling the pipeline and reads it
// afterwards to fill X-Embedding-Tokens.
type EmbeddingUsage struct {
	tokens atomic.Int64
	calls  atomic.Int32
}

// NewContextWithUsage attaches a fresh collector to ctx.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := new(EmbeddingUsage)
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext returns the request's collector, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(usageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records one embedding call. n is 0 for a cache hit. Safe on a
// nil receiver.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.calls.Add(1)
	u.tokens.Add(int64(n))
}

// Tokens is the running token total.
func (u *EmbeddingUsage) Tokens() int {
	if u == nil {
		return 0
	}
	return int(u.tokens.Load())
}

// Used reports whether any embedding call was recorded.
func (u *EmbeddingUsage) Used() bool {
	return u != nil && u.calls.Load() > 0
}
