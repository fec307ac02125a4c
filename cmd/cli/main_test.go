package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A load block with a syntax error makes app.NewApp panic while loading
	// configuration.
	invalidHCL := `
		load {
			bands = ["red"
	`
	tempDir := t.TempDir()
	cfgPath := filepath.Join(tempDir, "load.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(invalidHCL), 0600), "failed to set up test file")
	itemsPath := filepath.Join(tempDir, "items.json")
	require.NoError(t, os.WriteFile(itemsPath, []byte(`[]`), 0600))

	args := []string{"-c", cfgPath, itemsPath}
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(context.Background(), out, args)

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "failed to parse")
}

func TestRun_UnknownConfigExtension(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	cfgPath := filepath.Join(tempDir, "load.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(""), 0600))

	err := run(context.Background(), &bytes.Buffer{}, []string{"-c", cfgPath, filepath.Join(tempDir, "items.json")})

	require.Error(t, err)
	require.Contains(t, err.Error(), "no configuration loader for")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}
