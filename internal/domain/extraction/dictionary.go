package extraction

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed dictionary.yaml
var defaultDictionaryYAML []byte

// DefaultDictionary returns the built-in clinical synonym dictionary. Each call
// decodes a fresh copy, so callers never share mutable state.
func DefaultDictionary() (*Dictionary, error) {
	return ParseDictionary(defaultDictionaryYAML)
}

// LoadDictionary reads a dictionary from a YAML file. An empty path yields the
// built-in dictionary.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return DefaultDictionary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}
	return ParseDictionary(data)
}

// ParseDictionary decodes a YAML (or JSON, which is valid YAML) dictionary.
func ParseDictionary(data []byte) (*Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}
	return &d, nil
}
