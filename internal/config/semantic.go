package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/tagsearch/internal/domain"
	"github.com/kailas-cloud/tagsearch/internal/domain/stage"
	"github.com/kailas-cloud/tagsearch/internal/domain/tagfield"
)

// LoadTagFields reads the tag field table: catalog field name -> {asMap, concept, text}.
// JSON is valid YAML, so both formats load.
func LoadTagFields(path string) (tagfield.Config, error) {
	data, err := readTable(path)
	if err != nil {
		return tagfield.Config{}, domain.NewConfigError(path, err)
	}

	var entries map[string]tagfield.Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return tagfield.Config{}, domain.NewConfigError(path, fmt.Errorf("parse: %w", err))
	}

	cfg, err := tagfield.New(entries)
	if err != nil {
		return tagfield.Config{}, domain.NewConfigError(path, err)
	}
	return cfg, nil
}

// stageFile is the on-disk stage shape. Boost maps keep their document order.
type stageFile struct {
	Name            string   `yaml:"name"`
	Fields          boostMap `yaml:"fields"`
	DynamicFields   boostMap `yaml:"dynamic_fields"`
	MinMatchPercent float64  `yaml:"minMatchPercent"`
}

type boostMap []stage.Boost

// UnmarshalYAML decodes a mapping of name -> boost, preserving key order.
func (m *boostMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of field to boost", node.Line)
	}
	out := make(boostMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var boost float64
		if err := node.Content[i+1].Decode(&boost); err != nil {
			return fmt.Errorf("line %d: boost for %q: %w", node.Content[i+1].Line, node.Content[i].Value, err)
		}
		out = append(out, stage.Boost{Key: node.Content[i].Value, Value: boost})
	}
	*m = out
	return nil
}

// LoadStages reads the ordered semantic stage list and compiles it.
func LoadStages(path string) (stage.Config, error) {
	data, err := readTable(path)
	if err != nil {
		return stage.Config{}, domain.NewConfigError(path, err)
	}

	files, err := decodeStages(data)
	if err != nil {
		return stage.Config{}, domain.NewConfigError(path, fmt.Errorf("parse: %w", err))
	}

	defs := make([]stage.Definition, len(files))
	for i, f := range files {
		defs[i] = stage.Definition{
			Name:            f.Name,
			Fields:          f.Fields,
			DynamicFields:   f.DynamicFields,
			MinMatchPercent: f.MinMatchPercent,
		}
	}

	cfg, err := stage.NewConfig(defs)
	if err != nil {
		return stage.Config{}, domain.NewConfigError(path, err)
	}
	return cfg, nil
}

// decodeStages accepts a bare stage list or a {"stages": [...]} document.
func decodeStages(data []byte) ([]stageFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var files []stageFile
	if root.Kind == yaml.MappingNode {
		var wrapped struct {
			Stages []stageFile `yaml:"stages"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, err
		}
		return wrapped.Stages, nil
	}
	if err := root.Decode(&files); err != nil {
		return nil, err
	}
	return files, nil
}

func readTable(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if !fileExists(path) && !filepath.IsAbs(path) {
		path = findFile(filepath.Base(path))
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return data, nil
}
