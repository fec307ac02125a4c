package integration_tests

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/app"
	"github.com/vk/stacgridgo/internal/testutil"
	"github.com/vk/stacgridgo/modules/memraster"
)

var zero = 0.0

// harnessResult holds the outcomes of an integration test run.
type harnessResult struct {
	Output string
	Err    error
	App    *app.App
	Dir    string
}

// scene describes one in-memory item: a 4x4 UTM 33N grid with its origin
// at x0, holding value+row*4+col in every band.
type scene struct {
	id, datetime string
	x0           float64
	value        float64
	bands        []string
}

// itemsJSON stores the scenes' pixels in store and renders them as a
// FeatureCollection of collection "sentinel-2-l2a".
func itemsJSON(t *testing.T, store *memraster.Store, scenes ...scene) string {
	t.Helper()
	var feats []string
	for _, s := range scenes {
		gb := testutil.UTMGrid(t, s.x0, 5600000, 10, 4, 4)
		b := testutil.NewItem(s.id).Collection("sentinel-2-l2a").Datetime(s.datetime).Footprint(t, gb)
		for _, band := range s.bands {
			v := s.value
			b.Asset(band, testutil.MemAsset(store, fmt.Sprintf("mem://%s/%s", s.id, band), gb, "uint16", &zero,
				func(r, c int) float64 { return v + float64(r*4+c) }))
		}
		feats = append(feats, string(b.JSON(t)))
	}
	return `{"type":"FeatureCollection","features":[` + strings.Join(feats, ",") + "]}"
}

// runApp writes files into a temporary directory and runs the app on
// items.json with every other .hcl, .json or .yaml file as configuration.
// cfg paths are relative to that directory.
func runApp(t *testing.T, store *memraster.Store, files map[string]string, cfg app.Config) *harnessResult {
	t.Helper()
	dir := testutil.WriteFiles(t, files)

	cfg.ItemsPath = filepath.Join(dir, "items.json")
	for i, p := range cfg.ConfigPaths {
		cfg.ConfigPaths[i] = filepath.Join(dir, p)
	}
	if cfg.StacCfgPath != "" {
		cfg.StacCfgPath = filepath.Join(dir, cfg.StacCfgPath)
	}
	if cfg.OutDir != "" {
		cfg.OutDir = filepath.Join(dir, cfg.OutDir)
	}
	cfg.LogLevel, cfg.LogFormat = "debug", "text"
	c, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out := &testutil.SafeBuffer{}
	res := &harnessResult{Dir: dir}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = fmt.Errorf("application startup panicked | %v", r)
			}
		}()
		res.App = app.NewApp(out, c, app.DefaultConfigLoader(), &memraster.Module{Store: store})
	}()
	if res.Err == nil {
		res.Err = res.App.Run(context.Background())
	}
	res.Output = out.String()
	testutil.DumpLogs(t, out)
	return res
}
