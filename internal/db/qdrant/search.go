package qdrant

import (
	"context"
	"errors"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/openprogramia/propuestas/internal/db"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
)

// SearchKNN runs a filtered nearest-neighbour query. Qdrant already returns
// cosine similarity, so scores pass through unchanged.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.Collection == "" {
		return nil, errors.New("collection is required")
	}
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.K <= 0 {
		return nil, errors.New("k must be positive")
	}

	req := &qdrant.QueryPoints{
		CollectionName: q.Collection,
		Query:          qdrant.NewQuery(q.Vector...),
		Filter:         buildFilter(q.Filters),
		Limit:          qdrant.PtrOf(uint64(q.K)),
		WithPayload:    withPayload(q.ReturnFields),
	}
	if q.EF > 0 {
		req.Params = &qdrant.SearchParams{HnswEf: qdrant.PtrOf(uint64(q.EF))}
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, wrapErr(db.OpQuery, err)
	}

	entries := make([]db.SearchEntry, 0, len(points))
	for _, p := range points {
		entries = append(entries, db.SearchEntry{
			Key:    pointIDToStr(p.GetId()),
			Score:  float64(p.GetScore()),
			Fields: payloadToMap(p.GetPayload()),
		})
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func withPayload(fields []string) *qdrant.WithPayloadSelector {
	if len(fields) == 0 {
		return qdrant.NewWithPayload(true)
	}
	return qdrant.NewWithPayloadInclude(fields...)
}

// buildFilter maps every condition to a keyword match inside a single must
// clause; an empty expression means no filter.
func buildFilter(expr filter.Expression) *qdrant.Filter {
	if expr.IsEmpty() {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(expr.Must()))
	for _, c := range expr.Must() {
		if c.IsAnyOf() {
			must = append(must, qdrant.NewMatchKeywords(c.Key(), c.AnyOf()...))
			continue
		}
		must = append(must, qdrant.NewMatchKeyword(c.Key(), c.Value()))
	}
	return &qdrant.Filter{Must: must}
}

func pointIDToStr(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	default:
		return ""
	}
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	m := make(map[string]any, len(payload))
	for k, v := range payload {
		m[k] = valueToAny(v)
	}
	return m
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch k := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		if k.StructValue == nil {
			return nil
		}
		return payloadToMap(k.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		if k.ListValue == nil {
			return nil
		}
		list := make([]any, len(k.ListValue.GetValues()))
		for i, lv := range k.ListValue.GetValues() {
			list[i] = valueToAny(lv)
		}
		return list
	default:
		return nil
	}
}
