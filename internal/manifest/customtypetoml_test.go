package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCustomTypesTOMLParsesSeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom_types.toml")
	content := `
[[types]]
name = "positive_int"
parent = "integer"
min = 1.0

[[types]]
name = "short_code"
parent = "string"
min_len = 2
max_len = 8
pattern = "^[A-Z]+$"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := LoadCustomTypesTOML(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "positive_int", rows[0].Name)
	assert.Equal(t, "integer", rows[0].Parent)
	require.NotNil(t, rows[0].Min)
	assert.Equal(t, 1.0, *rows[0].Min)

	assert.Equal(t, "short_code", rows[1].Name)
	require.NotNil(t, rows[1].MinLen)
	assert.Equal(t, 2, *rows[1].MinLen)
	assert.Equal(t, "^[A-Z]+$", rows[1].Pattern)
}

func TestLoadCustomTypesTOMLMissingFile(t *testing.T) {
	_, err := LoadCustomTypesTOML("/nonexistent/custom_types.toml")
	assert.Error(t, err)
}
