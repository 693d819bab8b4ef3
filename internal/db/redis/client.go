// Package redis is the Redis Stack / Redis 8 backend: KNN search over the
// program fragments via FT.SEARCH, and the plain key space used by the query
// embedding cache.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/openprogramia/propuestas/internal/db"
)

var _ db.VectorStore = (*Store)(nil)

const (
	clientName    = "propuestas"
	readyInterval = 100 * time.Millisecond
)

// Config holds connection parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store talks to Redis through rueidis. Fragments are HASH keys
// "<collection>:doc:<id>" under the FT index "<collection>:idx".
type Store struct {
	client rueidis.Client
}

// NewStore connects to Redis. Client-side caching stays off: fragments are
// rewritten in bulk by the ingestion job and embeddings are cached explicitly.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redis: at least one address is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   clientName,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH replies are parsed as flat RESP2 arrays
	})
	if err != nil {
		return nil, &db.Error{Op: "CONNECT", Err: fmt.Errorf("%w: %w", db.ErrUnavailable, err)}
	}
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return wrapErr("PING", err)
	}
	return nil
}

// WaitForReady blocks until Redis answers PING or timeout passes.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.PollReady(ctx, timeout, readyInterval, s.Ping)
}

// Close shuts down the client.
func (s *Store) Close() { s.client.Close() }

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder { return s.client.B() }

// wrapErr marks anything that is not a server error reply as
// db.ErrUnavailable.
func wrapErr(op string, err error) error {
	if _, ok := rueidisErr(err); ok {
		return &db.Error{Op: op, Err: err}
	}
	return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrUnavailable, err)}
}

func rueidisErr(err error) (*rueidis.RedisError, bool) {
	return rueidis.IsRedisErr(err)
}
