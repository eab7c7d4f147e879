package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/tagsearch/internal/domain/dataset"
)

// MaxConditions is the maximum number of attribute filters per request.
const MaxConditions = 32

// AttributePrefix marks attribute filters among request parameters and index fields.
const AttributePrefix = "attributes."

// Policy decides how attribute filters take part in a semantic stage query.
type Policy string

const (
	// AsBoost adds filters as extra disjunction clauses: they raise the score but do not exclude.
	AsBoost Policy = "filters_as_boost"
	// AsRequired intersects the stage query with every filter.
	AsRequired Policy = "filters_as_required"
)

// IsValid reports whether p is a known policy.
func (p Policy) IsValid() bool { return p == AsBoost || p == AsRequired }

// Condition is an exact match on one product attribute.
type Condition struct {
	key   string
	value string
}

// NewMatch creates an attribute match condition. A leading "attributes." is stripped.
func NewMatch(key, value string) (Condition, error) {
	key = strings.TrimPrefix(key, AttributePrefix)
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, value: value}, nil
}

// Key returns the bare attribute name.
func (c Condition) Key() string { return c.key }

// Value returns the exact match value.
func (c Condition) Value() string { return c.value }

// Field returns the index field path of the attribute. Keys are snake_cased like the
// stored attribute keys.
func (c Condition) Field() string { return AttributePrefix + dataset.SnakeCase(c.key) }

// Attributes is an ordered set of attribute filters.
type Attributes struct {
	conditions []Condition
}

// NewAttributes builds filters from a key/value map, ordered by key.
func NewAttributes(m map[string]string) (Attributes, error) {
	if len(m) > MaxConditions {
		return Attributes{}, fmt.Errorf("too many attribute filters (max %d)", MaxConditions)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]Condition, 0, len(keys))
	for _, k := range keys {
		c, err := NewMatch(k, m[k])
		if err != nil {
			return Attributes{}, err
		}
		conds = append(conds, c)
	}
	return Attributes{conditions: conds}, nil
}

// Conditions returns the filters in key order.
func (a Attributes) Conditions() []Condition { return a.conditions }

// IsEmpty reports whether there are no filters.
func (a Attributes) IsEmpty() bool { return len(a.conditions) == 0 }

// Map returns the filters keyed by bare attribute name.
func (a Attributes) Map() map[string]string {
	if len(a.conditions) == 0 {
		return nil
	}
	m := make(map[string]string, len(a.conditions))
	for _, c := range a.conditions {
		m[c.key] = c.value
	}
	return m
}
