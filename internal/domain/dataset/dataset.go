// Package dataset is an in-memory catalog snapshot consumed by tag extraction.
package dataset

import "fmt"

// Row is one catalog record keyed by field name. Values are scalars,
// or nested maps for map-typed fields.
type Row map[string]any

// Snapshot is an immutable set of catalog rows.
type Snapshot struct {
	rows []Row
}

// New creates a snapshot over rows.
func New(rows []Row) Snapshot {
	return Snapshot{rows: rows}
}

// Len returns the number of rows.
func (s Snapshot) Len() int { return len(s.rows) }

// Rows returns the snapshot rows.
func (s Snapshot) Rows() []Row { return s.rows }

// Scalar returns the string form of a scalar field. Nil, missing and map values report false.
func (r Row) Scalar(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case map[string]any, map[string]string:
		return "", false
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

// Nested returns the sub-attributes of a map field with non-nil values stringified.
func (r Row) Nested(field string) (map[string]string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]string:
		return t, true
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, sv := range t {
			if sv == nil {
				continue
			}
			if s, ok := sv.(string); ok {
				out[k] = s
				continue
			}
			out[k] = fmt.Sprint(sv)
		}
		return out, true
	default:
		return nil, false
	}
}
