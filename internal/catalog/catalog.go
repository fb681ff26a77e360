// Package catalog ships the built-in tutorial catalog and imports custom ones
// from YAML files.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"hyperlearn/internal/domain"
)

//go:embed seed.yaml
var seedYAML []byte

// Seed returns a fresh copy of the built-in catalog.
func Seed() []domain.Tutorial {
	tutorials, err := Parse(seedYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded seed is invalid: %v", err))
	}
	return tutorials
}

// Parse decodes a YAML document holding either one tutorial or a list of them.
func Parse(data []byte) ([]domain.Tutorial, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var tutorials []domain.Tutorial
		if err := root.Decode(&tutorials); err != nil {
			return nil, fmt.Errorf("decode tutorials: %w", err)
		}
		return tutorials, nil
	case yaml.MappingNode:
		var t domain.Tutorial
		if err := root.Decode(&t); err != nil {
			return nil, fmt.Errorf("decode tutorial: %w", err)
		}
		return []domain.Tutorial{t}, nil
	default:
		return nil, fmt.Errorf("catalog yaml must be a tutorial or a list of tutorials")
	}
}

// LoadGlob reads every file matching pattern (doublestar syntax, e.g.
// "tutorials/**/*.yaml") in lexical path order and concatenates their tutorials.
func LoadGlob(pattern string) ([]domain.Tutorial, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no catalog files match %s", pattern)
	}
	sort.Strings(matches)

	var out []domain.Tutorial
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		tutorials, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		out = append(out, tutorials...)
	}
	return out, nil
}
