// Package index defines the tag and product FT indexes and records indexing runs.
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/tagsearch/internal/db"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
)

// conceptSeparator splits multi-value TAG fields. Concept values may contain the
// default "," separator ("Apple, Inc.") and must stay whole.
const conceptSeparator = "|"

// Field variants the keyword fallback and typeahead query regardless of stage config.
var keywordVariants = []string{"name.text", "description.text", "search_keywords.text"}

// TagIndex is the tag store schema: tag text is analyzed, field and type are exact.
func TagIndex(name, prefix string) (*db.IndexDefinition, error) {
	def, err := db.NewIndex(name).
		OnJSON().
		Prefix(prefix).
		Text("$.tag", "tag").
		Tag("$.field", "field").
		Tag("$.type", "type").
		Numeric("$.weight", "weight").
		Build()
	if err != nil {
		return nil, fmt.Errorf("tag index: %w", err)
	}
	return def, nil
}

// ProductIndex exposes every field variant as its own attribute: "<f>.concept" is a TAG on
// $.<f>, "<f>.text" a TEXT on $.<f>, and "attributes.<k>" a TAG on $.attributes.<k>.
// Attribute names replace "." with "_".
func ProductIndex(name, prefix string, variants []string) (*db.IndexDefinition, error) {
	all := make(map[string]struct{}, len(variants)+len(keywordVariants))
	for _, v := range keywordVariants {
		all[v] = struct{}{}
	}
	for _, v := range variants {
		all[v] = struct{}{}
	}
	sorted := make([]string, 0, len(all))
	for v := range all {
		sorted = append(sorted, v)
	}
	sort.Strings(sorted)

	b := db.NewIndex(name).OnJSON().Prefix(prefix)
	for _, v := range sorted {
		alias := AttributeName(v)
		switch {
		case strings.HasPrefix(v, filter.AttributePrefix):
			b.TagWithOpts("$."+v, alias, conceptSeparator, false)
		case strings.HasSuffix(v, ".concept"):
			b.TagWithOpts("$."+strings.TrimSuffix(v, ".concept"), alias, conceptSeparator, false)
		case strings.HasSuffix(v, ".text"):
			b.Text("$."+strings.TrimSuffix(v, ".text"), alias)
		default:
			return nil, fmt.Errorf("product index: field variant %q has no concept/text suffix", v)
		}
	}
	b.Numeric("$.price", "price").Numeric("$.rating", "rating")

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("product index: %w", err)
	}
	return def, nil
}

// AttributeName maps a field variant to its index attribute.
func AttributeName(variant string) string {
	return strings.ReplaceAll(variant, ".", "_")
}

// Schema is the set of attribute names an index was created with.
type Schema map[string]struct{}

// NewSchema builds a Schema from attribute names.
func NewSchema(attrs []string) Schema {
	s := make(Schema, len(attrs))
	for _, a := range attrs {
		s[a] = struct{}{}
	}
	return s
}

// Has reports whether the field variant is an attribute of the index.
func (s Schema) Has(variant string) bool {
	_, ok := s[AttributeName(variant)]
	return ok
}
