package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk layout of an external substitution table.
type tableFile struct {
	Substitutions []Substitution `yaml:"substitutions"`
}

// LoadTable reads an ordered substitution list from a YAML file of the form:
//
//	substitutions:
//	  - pattern: ny giants
//	    replacement: new york giants
func LoadTable(path string) ([]Substitution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("normalize: read table %s: %w", path, err)
	}
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("normalize: parse table %s: %w", path, err)
	}
	for i, s := range tf.Substitutions {
		if prepare(s.Pattern) == "" {
			return nil, fmt.Errorf("normalize: table %s entry %d: empty pattern", path, i)
		}
	}
	return tf.Substitutions, nil
}

// Merge overlays extra on base. An entry in extra whose pattern already exists
// in base replaces that entry's replacement in place; new patterns are appended
// in order.
func Merge(base, extra []Substitution) []Substitution {
	out := make([]Substitution, len(base), len(base)+len(extra))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, s := range out {
		index[prepare(s.Pattern)] = i
	}
	for _, s := range extra {
		key := prepare(s.Pattern)
		if i, ok := index[key]; ok {
			out[i].Replacement = s.Replacement
			continue
		}
		index[key] = len(out)
		out = append(out, s)
	}
	return out
}
