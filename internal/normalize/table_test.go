package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTable(t *testing.T) {
	path := writeTable(t, `
substitutions:
  - pattern: diego lopez
    replacement: diego lopes
  - pattern: ny giants
    replacement: new york football giants
`)

	subs, err := LoadTable(path)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "diego lopez", subs[0].Pattern)
	assert.Equal(t, "diego lopes", subs[0].Replacement)
}

func TestLoadTable_RejectsEmptyPattern(t *testing.T) {
	path := writeTable(t, `
substitutions:
  - pattern: "  "
    replacement: nothing
`)

	_, err := LoadTable(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty pattern")
}

func TestLoadTable_MissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := []Substitution{
		{Pattern: "ny giants", Replacement: "new york giants"},
		{Pattern: "man utd", Replacement: "manchester united"},
	}
	extra := []Substitution{
		{Pattern: "NY Giants", Replacement: "giants"},
		{Pattern: "diego lopez", Replacement: "diego lopes"},
	}

	merged := Merge(base, extra)

	require.Len(t, merged, 3)
	assert.Equal(t, "giants", merged[0].Replacement)
	assert.Equal(t, "man utd", merged[1].Pattern)
	assert.Equal(t, "diego lopez", merged[2].Pattern)
	// base is untouched
	assert.Equal(t, "new york giants", base[0].Replacement)

	n := New(merged)
	assert.Equal(t, n.Normalize("Diego Lopes"), n.Normalize("Diego Lopez"))
}
