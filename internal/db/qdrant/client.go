// Package qdrant implements db.VectorStore over the Qdrant gRPC API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/openprogramia/propuestas/internal/db"
)

var _ db.VectorStore = (*Store)(nil)

const readyInterval = 200 * time.Millisecond

// Client is the subset of *qdrant.Client the store uses.
type Client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Config holds connection parameters for a Qdrant store.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Store implements db.VectorStore via qdrant/go-client. Keys are point IDs
// and fields are the point payload.
type Store struct {
	client Client
}

// NewStore connects to Qdrant.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, errors.New("host is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, &db.Error{Op: "CONNECT", Err: fmt.Errorf("%w: %w", db.ErrUnavailable, err)}
	}
	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(c Client) *Store {
	return &Store{client: c}
}

// Ping checks connectivity via the gRPC health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return wrapErr(db.OpHealth, err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	_ = s.client.Close()
}

// WaitForReady blocks until the qdrant health check passes or timeout passes.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.PollReady(ctx, timeout, readyInterval, s.Ping)
}

// isTransientError reports gRPC codes that indicate the backend could not
// serve the call at all.
func isTransientError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func wrapErr(op string, err error) error {
	if isTransientError(err) {
		return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrUnavailable, err)}
	}
	return &db.Error{Op: op, Err: err}
}
