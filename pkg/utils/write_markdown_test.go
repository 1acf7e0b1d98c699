package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMarkdownCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")

	path, err := WriteMarkdown(dir, "r.md", "# Report\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "r.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", string(data))
}
