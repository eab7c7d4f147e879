// Package stage models the ordered semantic search cascade and its boost tables.
package stage

import (
	"fmt"
	"regexp"
	"sort"
)

// Boost is one field-variant (or pattern) weight, kept in configured order.
type Boost struct {
	Key   string
	Value float64
}

// Definition is the raw, as-configured shape of a stage.
type Definition struct {
	Name            string
	Fields          []Boost
	DynamicFields   []Boost
	MinMatchPercent float64
}

type pattern struct {
	raw   string
	re    *regexp.Regexp
	boost float64
}

// Stage is a compiled semantic stage. Boost lookup is two-tier: the static table first,
// then precompiled patterns in listed order.
type Stage struct {
	name            string
	fields          map[string]float64
	fieldNames      []string
	patterns        []pattern
	minMatchPercent float64
}

// New compiles a stage definition. Patterns must match the whole field variant.
func New(def Definition) (Stage, error) {
	if def.Name == "" {
		return Stage{}, fmt.Errorf("stage name is required")
	}
	if def.MinMatchPercent < 0 || def.MinMatchPercent > 1 {
		return Stage{}, fmt.Errorf("stage %q: minMatchPercent must be between 0 and 1, got %g",
			def.Name, def.MinMatchPercent)
	}

	s := Stage{
		name:            def.Name,
		fields:          make(map[string]float64, len(def.Fields)),
		fieldNames:      make([]string, 0, len(def.Fields)),
		patterns:        make([]pattern, 0, len(def.DynamicFields)),
		minMatchPercent: def.MinMatchPercent,
	}
	for _, b := range def.Fields {
		if b.Key == "" {
			return Stage{}, fmt.Errorf("stage %q: empty field name", def.Name)
		}
		if _, dup := s.fields[b.Key]; !dup {
			s.fieldNames = append(s.fieldNames, b.Key)
		}
		s.fields[b.Key] = b.Value
	}
	for _, b := range def.DynamicFields {
		re, err := regexp.Compile(`^(?:` + b.Key + `)$`)
		if err != nil {
			return Stage{}, fmt.Errorf("stage %q: dynamic field %q: %w", def.Name, b.Key, err)
		}
		s.patterns = append(s.patterns, pattern{raw: b.Key, re: re, boost: b.Value})
	}
	return s, nil
}

// Name returns the stage name.
func (s *Stage) Name() string { return s.name }

// MinMatchPercent returns the gate in [0,1].
func (s *Stage) MinMatchPercent() float64 { return s.minMatchPercent }

// FieldNames returns the static field variants in configured order.
func (s *Stage) FieldNames() []string {
	out := make([]string, len(s.fieldNames))
	copy(out, s.fieldNames)
	return out
}

// Resolve returns the boost for a field variant. A static entry always wins over patterns.
func (s *Stage) Resolve(variant string) (float64, bool) {
	if b, ok := s.fields[variant]; ok {
		return b, true
	}
	for _, p := range s.patterns {
		if p.re.MatchString(variant) {
			return p.boost, true
		}
	}
	return 0, false
}

// Config is the ordered, immutable stage list.
type Config struct {
	stages []Stage
}

// NewConfig compiles all definitions, preserving order. Names must be unique.
func NewConfig(defs []Definition) (Config, error) {
	if len(defs) == 0 {
		return Config{}, fmt.Errorf("at least one stage is required")
	}
	seen := make(map[string]struct{}, len(defs))
	stages := make([]Stage, 0, len(defs))
	for _, d := range defs {
		st, err := New(d)
		if err != nil {
			return Config{}, err
		}
		if _, dup := seen[st.name]; dup {
			return Config{}, fmt.Errorf("duplicate stage name %q", st.name)
		}
		seen[st.name] = struct{}{}
		stages = append(stages, st)
	}
	return Config{stages: stages}, nil
}

// Stages returns the stages in cascade order.
func (c Config) Stages() []Stage { return c.stages }

// Len returns the number of stages.
func (c Config) Len() int { return len(c.stages) }

// StaticFieldVariants returns the union of all static field variants, sorted.
func (c Config) StaticFieldVariants() []string {
	set := make(map[string]struct{})
	for i := range c.stages {
		for _, f := range c.stages[i].fieldNames {
			set[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
