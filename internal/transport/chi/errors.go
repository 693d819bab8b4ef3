package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/domain"
	"github.com/openprogramia/propuestas/internal/logger"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeInvalidQuery           ErrorCode = "invalid_query"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeRetrievalUnavailable   ErrorCode = "retrieval_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorMapping translates one domain sentinel into an HTTP response. The
// client sees the sentinel's text, never the wrapped detail.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

// Order matters: a dimension mismatch also wraps the provider error.
var domainErrors = []errorMapping{
	{domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery},
	{domain.ErrVectorDimMismatch, http.StatusBadGateway, CodeEmbeddingProviderError},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError},
	{domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, CodeRetrievalUnavailable},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func mapDomainError(err error) (errorMapping, bool) {
	for _, m := range domainErrors {
		if errors.Is(err, m.sentinel) {
			return m, true
		}
	}
	return errorMapping{}, false
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	m, ok := mapDomainError(err)
	if !ok {
		log.Error("unmapped error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}
	log.Warn("request failed", zap.Int("status", m.status), zap.Error(err))
	writeError(w, m.status, m.code, m.sentinel.Error())
}
