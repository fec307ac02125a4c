package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/config"
	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/graphexecutor"
	"github.com/vk/stacgridgo/internal/localexecutor"
)

func TestOptions_FromModel(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	model := config.New()
	model.Load = &config.Load{
		Bands:       []string{"red", "nir"},
		CRS:         "EPSG:32633",
		Resolution:  []float64{20},
		Anchor:      "center",
		BBox:        []float64{10, 40, 11, 41},
		GroupBy:     "solar_day",
		Resampling:  map[string]string{"*": "bilinear"},
		Chunks:      map[string]int{"x": 256, "y": 128},
		DataType:    "float32",
		Nodata:      ptr(-9999.0),
		Fuse:        "first",
		FailOnError: ptr(false),
		Executor:    "graph",
		Workers:     3,
	}
	a, _, _ := setupAppTest(t, Config{}, model)

	// --- Act ---
	opts, err := a.options(lookupFrom(nil))

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "nir"}, opts.Bands)
	assert.Equal(t, geo.EPSG(32633), opts.Grid.CRS)
	require.NotNil(t, opts.Grid.Resolution)
	assert.Equal(t, geo.Square(20), *opts.Grid.Resolution)
	assert.Equal(t, []float64{10, 40, 11, 41}, opts.Grid.BBox)
	assert.Equal(t, "solar_day", opts.GroupBy)
	assert.Equal(t, 128, opts.Chunks.Y)
	assert.Equal(t, 256, opts.Chunks.X)
	assert.Equal(t, -9999.0, *opts.SrcNodataFallback)
	assert.True(t, opts.ContinueOnError)
	assert.Equal(t, 3, opts.Workers)
	assert.IsType(t, &graphexecutor.Executor{}, opts.Executor)
	assert.Same(t, a.registry, opts.Registry)
	require.NotNil(t, opts.Env)
	assert.Equal(t, "stacgridgo", opts.Env.UserAgent)
}

func TestOptions_CommandLineOverrides(t *testing.T) {
	t.Parallel()

	model := config.New()
	model.Load = &config.Load{Bands: []string{"red"}, CRS: "EPSG:4326", Executor: "graph", Workers: 8}
	a, _, _ := setupAppTest(t, Config{Bands: []string{"nir"}, CRS: "EPSG:3857", Resolution: 30, Executor: "local", Workers: 2}, model)

	opts, err := a.options(lookupFrom(nil))

	require.NoError(t, err)
	assert.Equal(t, []string{"nir"}, opts.Bands)
	assert.Equal(t, geo.EPSG(3857), opts.Grid.CRS)
	assert.Equal(t, geo.Square(30), *opts.Grid.Resolution)
	assert.Equal(t, 2, opts.Workers)
	assert.IsType(t, &localexecutor.Executor{}, opts.Executor)
	assert.Equal(t, []string{"red"}, model.Load.Bands, "overrides do not leak into the model")
}

func TestOptions_Invalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		load  config.Load
		field string
	}{
		{name: "crs", load: config.Load{CRS: "not a crs"}, field: "crs"},
		{name: "three resolutions", load: config.Load{Resolution: []float64{1, 2, 3}}, field: "resolution"},
		{name: "zero resolution", load: config.Load{Resolution: []float64{0}}, field: "resolution"},
		{name: "anchor", load: config.Load{Anchor: "middle-ish"}, field: "anchor"},
		{name: "bbox", load: config.Load{BBox: []float64{1, 2, 3}}, field: "bbox"},
		{name: "chunk axis", load: config.Load{Chunks: map[string]int{"time": 1}}, field: "chunks"},
		{name: "executor", load: config.Load{Executor: "dask"}, field: "executor"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			model := config.New()
			model.Load = &tc.load
			a, _, _ := setupAppTest(t, Config{}, model)

			_, err := a.options(lookupFrom(nil))

			require.Error(t, err)
			assert.True(t, errs.IsConfiguration(err))
			assert.Contains(t, err.Error(), "configuration "+tc.field)
		})
	}
}

func TestParserConfig(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cols := map[string]*config.Collection{
		"s2": {
			Name:       "s2",
			Assets:     map[string]*config.Asset{"B04": {Name: "B04", DataType: "uint16", Nodata: ptr(0.0), Unit: "1"}},
			Aliases:    map[string][]string{"red": {"B04"}},
			IgnoreProj: true,
			Warnings:   "ignore",
			AliasOrder: "alphabetical",
		},
	}

	// --- Act ---
	cfg := parserConfig(cols, "?sv=2021&sig=abc")

	// --- Assert ---
	cc, ok := cfg.Collections["s2"]
	require.True(t, ok)
	assert.True(t, cc.IgnoreProj)
	assert.True(t, cc.Quiet)
	assert.Equal(t, "alphabetical", cc.AliasOrder)
	assert.Equal(t, []string{"B04"}, cc.Aliases["red"])
	assert.Equal(t, "uint16", cc.Assets["B04"].DataType)
	assert.Equal(t, 0.0, *cc.Assets["B04"].Nodata)

	require.NotNil(t, cfg.PatchURL)
	assert.Equal(t, "https://x/a.tif?sv=2021&sig=abc", cfg.PatchURL("https://x/a.tif"))
	assert.Equal(t, "https://x/a.tif?v=1&sv=2021&sig=abc", cfg.PatchURL("https://x/a.tif?v=1"))

	assert.Nil(t, parserConfig(nil, "").PatchURL)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	e := env.Capture(lookupFrom(map[string]string{
		"AWS_REGION":        "us-west-2",
		"GDAL_HTTP_HEADERS": "X-A: 1",
	}))
	c := &config.Env{
		AWSRegion:        "eu-central-1",
		AWSNoSignRequest: ptr(true),
		RequesterPays:    ptr(true),
		BearerToken:      "tok",
		Headers:          map[string]string{"X-B": "2"},
		Timeout:          1.5,
		RetryDelay:       0.25,
		MaxRetries:       ptr(0),
	}

	// --- Act ---
	applyEnv(&e, c)

	// --- Assert ---
	assert.Equal(t, "eu-central-1", e.AWS.Region)
	assert.True(t, e.AWS.NoSign)
	assert.True(t, e.AWS.RequesterPays)
	assert.Equal(t, "tok", e.BearerToken)
	assert.Equal(t, map[string]string{"X-A": "1", "X-B": "2"}, e.Headers)
	assert.Equal(t, 1500*time.Millisecond, e.Timeout)
	assert.Equal(t, 250*time.Millisecond, e.Retry.InitialDelay)
	assert.Equal(t, 1, e.Retry.MaxAttempts)

	before := e
	applyEnv(&e, nil)
	assert.Equal(t, before, e)
}
