package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/openprogramia/propuestas/internal/db"
)

// Get reads a binary value. A missing key is db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, &db.Error{Op: db.OpGet, Err: db.ErrKeyNotFound}
	case err != nil:
		return nil, wrapErr(db.OpGet, err)
	}
	return b, nil
}

// SetWithTTL writes a binary value that expires after ttl (whole seconds).
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return wrapErr(db.OpSetEx, err)
	}
	return nil
}
