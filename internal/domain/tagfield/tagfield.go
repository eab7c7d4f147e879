// Package tagfield holds the immutable table that tells the extractor how to tag each catalog field.
package tagfield

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/tagsearch/internal/domain/dataset"
)

// Entry governs extraction for one catalog field.
type Entry struct {
	AsMap   bool `yaml:"asMap" json:"asMap"`
	Concept bool `yaml:"concept" json:"concept"`
	Text    bool `yaml:"text" json:"text"`
}

// Config maps catalog field names to their extraction rules.
type Config struct {
	entries map[string]Entry
	names   []string
}

// New validates entries and builds a Config.
func New(entries map[string]Entry) (Config, error) {
	if len(entries) == 0 {
		return Config{}, fmt.Errorf("at least one tag field is required")
	}
	names := make([]string, 0, len(entries))
	copied := make(map[string]Entry, len(entries))
	for name, e := range entries {
		if name == "" {
			return Config{}, fmt.Errorf("tag field name is required")
		}
		if !e.Concept && !e.Text {
			return Config{}, fmt.Errorf("tag field %q emits nothing: enable concept or text", name)
		}
		copied[name] = e
		names = append(names, name)
	}
	sort.Strings(names)
	return Config{entries: copied, names: names}, nil
}

// Names returns configured field names in a stable order.
func (c Config) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Get returns the entry for a field.
func (c Config) Get(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Len returns the number of configured fields.
func (c Config) Len() int { return len(c.names) }

// Variants returns the field variants tags of the scalar fields can carry:
// "<snake>.concept" and/or "<snake>.text". Map fields are left out because their
// keys come from the data, not from the table.
func (c Config) Variants() []string {
	var out []string
	for _, name := range c.names {
		e := c.entries[name]
		if e.AsMap {
			continue
		}
		snake := dataset.SnakeCase(name)
		if e.Concept {
			out = append(out, snake+".concept")
		}
		if e.Text {
			out = append(out, snake+".text")
		}
	}
	return out
}
