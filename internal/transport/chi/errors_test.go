package chi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/openprogramia/propuestas/internal/domain"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
		msg    string
	}{
		{"invalid query", fmt.Errorf("search: %w", domain.ErrInvalidQuery), http.StatusBadRequest, CodeInvalidQuery, domain.ErrInvalidQuery.Error()},
		{
			"dimension mismatch wins over provider error",
			fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, domain.ErrVectorDimMismatch),
			http.StatusBadGateway, CodeEmbeddingProviderError, domain.ErrVectorDimMismatch.Error(),
		},
		{"retrieval down", fmt.Errorf("qdrant: %w", domain.ErrRetrievalUnavailable), http.StatusServiceUnavailable, CodeRetrievalUnavailable, domain.ErrRetrievalUnavailable.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := mapDomainError(tt.err)
			if !ok {
				t.Fatal("expected a mapping")
			}
			if m.status != tt.status || m.code != tt.code {
				t.Errorf("got %d/%s, want %d/%s", m.status, m.code, tt.status, tt.code)
			}
			if m.sentinel.Error() != tt.msg {
				t.Errorf("message %q, want %q", m.sentinel.Error(), tt.msg)
			}
		})
	}

	if _, ok := mapDomainError(errors.New("boom")); ok {
		t.Error("unknown errors must not be mapped")
	}
}
