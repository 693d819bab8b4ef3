// Package openai embeds search queries through an OpenAI-compatible API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/logger"
	"github.com/openprogramia/propuestas/internal/metrics"
)

// DefaultTimeout bounds one embedding call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Failure classes, used as the error_type metric label.
const (
	failRateLimited       = "rate_limited"
	failAuth              = "auth"
	failTimeout           = "timeout"
	failAPI               = "api_error"
	failEmptyResponse     = "empty_response"
	failDimensionMismatch = "dimension_mismatch"
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Embedder turns one query into one vector. Fragment vectors come from the
// ingestion job, so batching is never needed here.
type Embedder struct {
	client  *openai.Client
	cfg     Config
	logger  *zap.Logger
	timeout time.Duration
}

// NewEmbedder creates the provider client. BaseURL may point at any
// OpenAI-compatible server (a gateway or a local e5/bge deployment).
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	e := &Embedder{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     *cfg,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	return e
}

// Embed implements domain.Embedder. Every error wraps
// domain.ErrEmbeddingProviderError; a vector of the wrong length also wraps
// domain.ErrVectorDimMismatch.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.cfg.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.cfg.User,
		Dimensions:     e.cfg.Dimensions,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		f := classifyFailure(ctx, err)
		e.record(f.kind, elapsed)
		logger.FromContextOr(ctx, e.logger).Warn("query embedding failed",
			zap.String("provider", e.cfg.Provider),
			zap.String("model", e.cfg.Model),
			zap.String("error_type", f.kind),
			zap.Int("status", f.status),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, f
	}

	vec, f := e.vectorOf(resp)
	if f != nil {
		e.record(f.kind, elapsed)
		return domain.EmbeddingResult{}, f
	}

	e.record("", elapsed)
	e.countTokens(resp.Usage)
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck lists the provider's models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (e *Embedder) vectorOf(resp openai.EmbeddingResponse) ([]float32, *failure) {
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &failure{kind: failEmptyResponse, msg: "provider returned no vector"}
	}
	vec := resp.Data[0].Embedding
	if e.cfg.Dimensions > 0 && len(vec) != e.cfg.Dimensions {
		return nil, &failure{
			kind:  failDimensionMismatch,
			msg:   fmt.Sprintf("provider returned %d dimensions, index expects %d", len(vec), e.cfg.Dimensions),
			cause: domain.ErrVectorDimMismatch,
		}
	}
	return vec, nil
}

// record counts one call; kind is empty on success.
func (e *Embedder) record(kind string, elapsed time.Duration) {
	status := "success"
	if kind != "" {
		status = "error"
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, kind).Inc()
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, status).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.cfg.Provider, e.cfg.Model).Observe(elapsed.Seconds())
}

func (e *Embedder) countTokens(u openai.Usage) {
	if u.TotalTokens == 0 {
		return
	}
	metrics.EmbeddingTokensTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "prompt").Add(float64(u.PromptTokens))
	metrics.EmbeddingTokensTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "total").Add(float64(u.TotalTokens))
}

// failure is a classified provider error.
type failure struct {
	kind   string
	status int
	msg    string
	cause  error
}

func (f *failure) Error() string {
	if f.status != 0 {
		return fmt.Sprintf("embedding provider: %s (HTTP %d)", f.msg, f.status)
	}
	return "embedding provider: " + f.msg
}

// Unwrap exposes the domain sentinel plus the underlying cause, if any.
func (f *failure) Unwrap() []error {
	if f.cause == nil {
		return []error{domain.ErrEmbeddingProviderError}
	}
	return []error{domain.ErrEmbeddingProviderError, f.cause}
}

func classifyFailure(ctx context.Context, err error) *failure {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &failure{kind: failTimeout, msg: "request aborted", cause: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &failure{kind: failTimeout, msg: "request aborted", cause: ctxErr}
	}

	f := &failure{kind: failAPI, msg: "request failed"}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		f.status = apiErr.HTTPStatusCode
		f.msg = apiErr.Message
	case errors.As(err, &reqErr):
		f.status = reqErr.HTTPStatusCode
		f.msg = extractDetail(reqErr.Body)
		if f.msg == "" {
			f.msg = string(reqErr.Body)
		}
	}

	switch f.status {
	case http.StatusTooManyRequests:
		f.kind = failRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		f.kind = failAuth
	}
	return f
}

// extractDetail reads the "detail" field some gateways return instead of the
// OpenAI error envelope.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Detail
	}
	return ""
}
