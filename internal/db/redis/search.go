package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/redis/rueidis"

	"github.com/openprogramia/propuestas/internal/db"
	"github.com/openprogramia/propuestas/internal/domain/search/filter"
)

// scoreAlias is the name FT.SEARCH gives the KNN distance.
const scoreAlias = "__vector_score"

var (
	errNoCollection = errors.New("collection is required")
	errNoVector     = errors.New("vector is required")
	errBadK         = errors.New("k must be positive")
)

// SearchKNN runs a pre-filtered KNN query with FT.SEARCH. Distances are
// cosine, so scores come back as max(0, 1-distance).
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.Collection == "":
		return nil, errNoCollection
	case len(q.Vector) == 0:
		return nil, errNoVector
	case q.K <= 0:
		return nil, errBadK
	}

	req := knnRequest{q}
	reply, err := s.do(ctx, s.b().Arbitrary(db.OpSearch).Args(req.args()...).Build()).ToArray()
	if err != nil {
		return nil, wrapErr(db.OpSearch, err)
	}
	return decodeHits(reply, db.KeyPrefix(q.Collection))
}

type knnRequest struct {
	q *db.KNNQuery
}

// query renders "<prefilter>=>[KNN k @vector $BLOB ...]".
func (r knnRequest) query() string {
	var knn strings.Builder
	fmt.Fprintf(&knn, "[KNN %d @%s $BLOB", r.q.K, db.VectorFieldName)
	if r.q.EF > 0 {
		knn.WriteString(" EF_RUNTIME $EF")
	}
	knn.WriteByte(']')

	pre := prefilter(r.q.Filters)
	if pre == "" {
		return "*=>" + knn.String()
	}
	return "(" + pre + ")=>" + knn.String()
}

func (r knnRequest) params() []string {
	p := []string{"BLOB", encodeVector(r.q.Vector)}
	if r.q.EF > 0 {
		p = append(p, "EF", strconv.Itoa(r.q.EF))
	}
	return p
}

func (r knnRequest) args() []string {
	out := []string{db.IndexName(r.q.Collection), r.query()}
	if n := len(r.q.ReturnFields); n > 0 {
		out = append(out, "RETURN", strconv.Itoa(n+1))
		out = append(out, r.q.ReturnFields...)
		out = append(out, scoreAlias)
	}
	params := r.params()
	out = append(out,
		"SORTBY", scoreAlias,
		"LIMIT", "0", strconv.Itoa(r.q.K),
		"PARAMS", strconv.Itoa(len(params)),
	)
	out = append(out, params...)
	return append(out, "DIALECT", "2")
}

// decodeHits reads the RESP2 reply [total, key, [field, value, ...], ...].
func decodeHits(reply []rueidis.RedisMessage, prefix string) (*db.SearchResult, error) {
	if len(reply) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := reply[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("decode FT.SEARCH total: %w", err)
	}

	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+1 < len(reply); i += 2 {
		key, err := reply[i].ToString()
		if err != nil {
			continue
		}
		attrs, err := reply[i+1].AsStrMap()
		if err != nil {
			continue
		}
		res.Entries = append(res.Entries, hit(strings.TrimPrefix(key, prefix), attrs))
	}
	return res, nil
}

func hit(key string, attrs map[string]string) db.SearchEntry {
	e := db.SearchEntry{Key: key, Fields: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		if k == scoreAlias {
			if d, err := strconv.ParseFloat(v, 64); err == nil {
				e.Score = max(0, 1-d)
			}
			continue
		}
		e.Fields[k] = v
	}
	return e
}

// prefilter renders the conditions as space-joined (AND) tag clauses.
func prefilter(expr filter.Expression) string {
	conds := expr.Must()
	if len(conds) == 0 {
		return ""
	}
	clauses := make([]string, len(conds))
	for i, c := range conds {
		raw := []string{c.Value()}
		if c.IsAnyOf() {
			raw = c.AnyOf()
		}
		escaped := make([]string, len(raw))
		for j, v := range raw {
			escaped[j] = escapeTag(v)
		}
		clauses[i] = "@" + c.Key() + ":{" + strings.Join(escaped, " | ") + "}"
	}
	return strings.Join(clauses, " ")
}

// escapeTag backslash-escapes everything but letters, digits and '_', which
// is what the RediSearch tokenizer treats as literal inside a tag.
func escapeTag(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 8)
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// encodeVector packs the vector as little-endian FLOAT32, the layout the
// index declares.
func encodeVector(v []float32) string {
	buf := make([]byte, 0, 4*len(v))
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return string(buf)
}
