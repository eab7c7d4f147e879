// Package tag defines the semantic tag vocabulary shared by the extractor and the recognizer.
package tag

import "strings"

// Type is the tag kind: a whole field value or a single token of it.
type Type string

// Tag types.
const (
	TypeConcept Type = "concept"
	TypeText    Type = "text"
)

// IsValid reports whether t is a known tag type.
func (t Type) IsValid() bool {
	return t == TypeConcept || t == TypeText
}

// MatchType is the confidence with which a query token was resolved.
type MatchType string

// Match types, ordered by confidence.
const (
	MatchExact        MatchType = "EXACT"
	MatchSpellcheck   MatchType = "SPELLCHECK"
	MatchUnrecognised MatchType = "UNRECOGNISED"
)

// Rank orders match types: higher is more confident. Unknown values rank 0.
func (m MatchType) Rank() int {
	switch m {
	case MatchExact:
		return 3
	case MatchSpellcheck:
		return 2
	case MatchUnrecognised:
		return 1
	default:
		return 0
	}
}

// UnrecognisedField is the synthetic field of tags produced for unmatched tokens.
const UnrecognisedField = "unrecognised"

// DefaultWeight is the weight assigned to every extracted tag.
const DefaultWeight = 1.0

// Document is a tag as stored in the tag index.
type Document struct {
	Tag      string  `json:"tag"`
	Field    string  `json:"field"`
	Type     Type    `json:"type"`
	Weight   float64 `json:"weight"`
	SourceID string  `json:"source_id"`
}

// NewDocument builds a tag document with its deterministic source id.
func NewDocument(value, field string, t Type) Document {
	return Document{
		Tag:      value,
		Field:    field,
		Type:     t,
		Weight:   DefaultWeight,
		SourceID: SourceID(value, field, t),
	}
}

// SourceID is the upsert key of a tag: lowercased tag (spaces folded to "_"), field and type.
func SourceID(value, field string, t Type) string {
	key := strings.Join(strings.Fields(strings.ToLower(value)), "_")
	return key + "_" + field + "_" + string(t)
}

// Recognized is a tag resolved from a query token.
type Recognized struct {
	Document
	OriginalToken string    `json:"original_token"`
	MatchType     MatchType `json:"match_type"`
}

// NewUnrecognised builds the synthetic tag for a token no pass matched.
func NewUnrecognised(token string) Recognized {
	lower := strings.ToLower(token)
	return Recognized{
		Document: Document{
			Tag:      lower,
			Field:    UnrecognisedField,
			Type:     TypeConcept,
			Weight:   DefaultWeight,
			SourceID: lower + "_" + UnrecognisedField,
		},
		OriginalToken: token,
		MatchType:     MatchUnrecognised,
	}
}

// DedupKey identifies a recognized tag within one recognizer call.
func (r *Recognized) DedupKey() string {
	return strings.ToLower(r.Tag) + "_" + string(r.Type)
}

// FieldVariant is the index attribute the tag is scored against: "<field>.<type>",
// or the bare field path for attribute-derived fields.
func (r *Recognized) FieldVariant() string {
	if strings.HasPrefix(r.Field, "attribute") {
		return r.Field
	}
	return r.Field + "." + string(r.Type)
}

// Dedup keeps the first occurrence of every (lowercased tag, type) pair.
func Dedup(tags []Recognized) []Recognized {
	seen := make(map[string]struct{}, len(tags))
	out := make([]Recognized, 0, len(tags))
	for i := range tags {
		k := tags[i].DedupKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, tags[i])
	}
	return out
}

// Highlight markers wrapped around matched words in Hit.Highlighted.
const (
	HighlightOpen  = "<em>"
	HighlightClose = "</em>"
)

// Hit is a tag returned by a tag store lookup. Highlighted holds the tag text with the
// matched words wrapped in <em></em>, or "" when the store marked nothing.
type Hit struct {
	Doc         Document
	Highlighted string
}
