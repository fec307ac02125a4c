package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/app"
)

func TestParse_Flags(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{
		"-c", "load.hcl", "-config", "bench.json",
		"-stac-cfg", "collections.yaml",
		"-bands", "red, nir,,swir",
		"-bands", "qa",
		"-crs", "EPSG:32633",
		"-resolution", "20",
		"-executor", "GRAPH",
		"-workers", "3",
		"-groupby", "solar_day",
		"-metadata-only",
		"-log-level", "DEBUG",
		"items.json",
	}
	out := &bytes.Buffer{}

	// --- Act ---
	cfg, exit, err := Parse(args, out)

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "items.json", cfg.ItemsPath)
	assert.Equal(t, []string{"load.hcl", "bench.json"}, cfg.ConfigPaths)
	assert.Equal(t, "collections.yaml", cfg.StacCfgPath)
	assert.Equal(t, []string{"red", "nir", "swir", "qa"}, cfg.Bands)
	assert.Equal(t, "EPSG:32633", cfg.CRS)
	assert.Equal(t, 20.0, cfg.Resolution)
	assert.Equal(t, "graph", cfg.Executor)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "solar_day", cfg.GroupBy)
	assert.True(t, cfg.MetadataOnly)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, app.DefaultPreviewSize, cfg.PreviewSize)
}

func TestParse_UsageAndErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		exit    bool
		wantErr string
	}{
		{name: "help", args: []string{"-h"}, exit: true},
		{name: "no items path", args: nil, exit: true},
		{name: "two items paths", args: []string{"a.json", "b.json"}, wantErr: "expected one ITEMS_PATH"},
		{name: "bad log format", args: []string{"-log-format", "xml", "a.json"}, wantErr: "invalid log-format"},
		{name: "bad log level", args: []string{"-log-level", "trace", "a.json"}, wantErr: "invalid log-level"},
		{name: "bad resolution", args: []string{"-resolution", "ten", "a.json"}, wantErr: `invalid resolution "ten"`},
		{name: "bad executor", args: []string{"-executor", "dask", "a.json"}, wantErr: "invalid executor"},
		{name: "unknown flag", args: []string{"-nope", "a.json"}, wantErr: "flag provided but not defined"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := &bytes.Buffer{}

			cfg, exit, err := Parse(tc.args, out)

			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.exit, exit)
				assert.Nil(t, cfg)
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			require.Error(t, err)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantErr)
		})
	}
}
