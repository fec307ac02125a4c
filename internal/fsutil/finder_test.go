package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.NDJSON", "sub/c.json", "notes.txt"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o600))
	}
	single := filepath.Join(dir, "b.json")

	got, err := FindFiles([]string{single, dir, filepath.Join(dir, "missing")}, ".json", ".ndjson")
	require.NoError(t, err)
	assert.Equal(t, []string{
		single,
		filepath.Join(dir, "a.NDJSON"),
		filepath.Join(dir, "sub", "c.json"),
	}, got)

	got, err = FindFiles([]string{filepath.Join(dir, "notes.txt")}, ".json")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Panics(t, func() { _, _ = FindFiles([]string{dir}) })
}
