package document

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// FromPayload decodes a loosely typed store payload into a Candidate.
// Missing or mistyped fields fall back to zero values; the stores disagree
// on encodings (Qdrant returns typed values, Redis returns strings), so
// every field accepts both.
func FromPayload(id string, score float64, payload map[string]any) Candidate {
	c := Candidate{
		ID:               id,
		Content:          stringField(payload, FieldContent),
		Entity:           stringField(payload, FieldCandidate),
		Party:            stringField(payload, FieldParty),
		PageNumber:       intField(payload, FieldPageNumber),
		TopicCategory:    stringField(payload, FieldTopicCategory),
		ProposalType:     stringField(payload, FieldProposalType),
		TaxonomyPath:     stringField(payload, FieldTaxonomyPath),
		Tags:             listField(payload, FieldTags),
		Headers:          headersField(payload, FieldHeaders),
		SectionHierarchy: listField(payload, FieldSectionHierarchy),
		SourceFile:       stringField(payload, FieldSourceFile),
		VectorScore:      score,
	}
	c.deriveDisplayFields()
	return c
}

func stringField(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func intField(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// listField accepts a native list, a JSON-encoded list or a comma-separated string.
func listField(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil
		}
		if strings.HasPrefix(v, "[") {
			var out []string
			if err := json.Unmarshal([]byte(v), &out); err == nil {
				return out
			}
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

// headersField accepts a mapping or a JSON-encoded object. Headers are
// ordered by level label ("Header 1" < "Header 2").
func headersField(p map[string]any, key string) []Header {
	var m map[string]any
	switch v := p[key].(type) {
	case map[string]any:
		m = v
	case map[string]string:
		m = make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
	case string:
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil
		}
	default:
		return nil
	}

	headers := make([]Header, 0, len(m))
	for level, raw := range m {
		text, ok := raw.(string)
		if !ok || text == "" {
			continue
		}
		headers = append(headers, Header{Level: level, Text: text})
	}
	slices.SortFunc(headers, func(a, b Header) int { return strings.Compare(a.Level, b.Level) })
	return headers
}
