package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openprogramia/propuestas/internal/db"
)

// EnsureSchema creates the collection's FT index when FT.INFO does not know
// it. An index created concurrently by another instance counts as success.
// Existing indexes are never altered.
func (s *Store) EnsureSchema(ctx context.Context, schema *db.CollectionSchema) error {
	def, err := db.IndexForSchema(schema)
	if err != nil {
		return fmt.Errorf("index for %s: %w", schema.Name, err)
	}

	exists, err := s.IndexExists(ctx, def.Name)
	if err != nil || exists {
		return err
	}
	if err := s.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return err
	}
	return nil
}

// CreateIndex issues FT.CREATE for def.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid index %s: %w", def.Name, err)
	}
	cmd := s.b().Arbitrary(db.OpCreateIndex).Args(def.Args()...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if serverSays(err, "index already exists") {
			return db.ErrIndexExists
		}
		return wrapErr(db.OpCreateIndex, err)
	}
	return nil
}

// IndexExists probes FT.INFO. Redis Stack answers "Unknown index name" and
// Redis 8 "no such index" for a missing index.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary(db.OpIndexInfo).Args(name).Build()
	err := s.do(ctx, cmd).Error()
	switch {
	case err == nil:
		return true, nil
	case serverSays(err, "unknown index name"), serverSays(err, "no such index"):
		return false, nil
	default:
		return false, wrapErr(db.OpIndexInfo, err)
	}
}

// serverSays reports whether err is a Redis error reply mentioning phrase.
func serverSays(err error, phrase string) bool {
	re, ok := rueidisErr(err)
	return ok && strings.Contains(strings.ToLower(re.Error()), phrase)
}
