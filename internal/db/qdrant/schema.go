package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/openprogramia/propuestas/internal/db"
)

// EnsureSchema creates the collection when missing and a keyword payload
// index for every filterable field. Qdrant treats repeated index creation
// as a no-op.
func (s *Store) EnsureSchema(ctx context.Context, schema *db.CollectionSchema) error {
	if schema == nil || schema.Name == "" {
		return errors.New("collection name is required")
	}

	exists, err := s.client.CollectionExists(ctx, schema.Name)
	if err != nil {
		return wrapErr(db.OpIndexInfo, err)
	}
	if !exists {
		if schema.VectorDim <= 0 {
			return errors.New("vector dimension must be positive")
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: schema.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(schema.VectorDim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return wrapErr(db.OpCreateIndex, err)
		}
	}

	for _, field := range schema.KeywordFields {
		if err := s.createFieldIndex(ctx, schema.Name, field, qdrant.FieldType_FieldTypeKeyword); err != nil {
			return err
		}
	}
	for _, field := range schema.TextFields {
		if err := s.createFieldIndex(ctx, schema.Name, field, qdrant.FieldType_FieldTypeText); err != nil {
			return err
		}
	}
	for _, field := range schema.NumericFields {
		if err := s.createFieldIndex(ctx, schema.Name, field, qdrant.FieldType_FieldTypeInteger); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createFieldIndex(ctx context.Context, collection, field string, ft qdrant.FieldType) error {
	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      ft.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("index %s: %w", field, wrapErr(db.OpFieldIndex, err))
	}
	return nil
}
