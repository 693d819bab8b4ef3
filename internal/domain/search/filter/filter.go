package filter

import (
	"encoding/json"
	"fmt"
)

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 32

// Expression is a conjunction of payload conditions. Every condition must hold.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must ...Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	for _, c := range must {
		if c.key == "" {
			return Expression{}, fmt.Errorf("condition without key")
		}
	}
	return Expression{must: must}, nil
}

// Must returns the conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Condition is a single payload clause: either an exact value match or
// membership in a set of values.
type Condition struct {
	key   string
	value string
	anyOf []string
}

// NewMatch creates an exact keyword match condition.
func NewMatch(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, value: value}, nil
}

// NewAnyOf creates a condition satisfied when the field holds any of values.
func NewAnyOf(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	return Condition{key: key, anyOf: kept}, nil
}

// Key returns the payload field name.
func (c Condition) Key() string { return c.key }

// Value returns the exact match value.
func (c Condition) Value() string { return c.value }

// AnyOf returns the accepted values of a set condition.
func (c Condition) AnyOf() []string { return c.anyOf }

// IsAnyOf reports whether this is a set membership condition.
func (c Condition) IsAnyOf() bool { return len(c.anyOf) > 0 }

type wireMatch struct {
	Value string   `json:"value,omitempty"`
	Any   []string `json:"any,omitempty"`
}

type wireCondition struct {
	Key   string    `json:"key"`
	Match wireMatch `json:"match"`
}

// MarshalJSON encodes the condition as {"key": k, "match": {"value"|"any": ...}}.
func (c Condition) MarshalJSON() ([]byte, error) {
	w := wireCondition{Key: c.key}
	if c.IsAnyOf() {
		w.Match.Any = c.anyOf
	} else {
		w.Match.Value = c.value
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and validates the wire form produced by MarshalJSON.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var w wireCondition
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode condition: %w", err)
	}
	var (
		parsed Condition
		err    error
	)
	switch {
	case len(w.Match.Any) > 0:
		parsed, err = NewAnyOf(w.Key, w.Match.Any...)
	default:
		parsed, err = NewMatch(w.Key, w.Match.Value)
	}
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
