package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/geotiff"
	"github.com/vk/stacgridgo/internal/testutil"
	"github.com/vk/stacgridgo/modules/memraster"
)

var zero = 0.0

// writeItems stores two adjacent 4x4 uint16 scenes and writes them as a
// FeatureCollection to a temporary file.
func writeItems(t *testing.T, store *memraster.Store) string {
	t.Helper()
	ga := testutil.UTMGrid(t, 500000, 5600000, 10, 4, 4)
	gb := testutil.UTMGrid(t, 500040, 5600000, 10, 4, 4)
	a := testutil.NewItem("a").Collection("s2").Datetime("2021-05-01T10:00:00Z").Footprint(t, ga).
		Asset("B04", testutil.MemAsset(store, "mem://a/B04", ga, "uint16", &zero, func(r, c int) float64 { return float64(1 + r*4 + c) }))
	b := testutil.NewItem("b").Collection("s2").Datetime("2021-05-01T10:00:00Z").Footprint(t, gb).
		Asset("B04", testutil.MemAsset(store, "mem://b/B04", gb, "uint16", &zero, func(r, c int) float64 { return float64(101 + r*4 + c) }))

	fc := `{"type":"FeatureCollection","features":[` + string(a.JSON(t)) + "," + string(b.JSON(t)) + "]}"
	dir := testutil.WriteFiles(t, map[string]string{"items/scenes.json": fc})
	return filepath.Join(dir, "items")
}

func TestRun_LoadsAndSummarises(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	outDir := filepath.Join(t.TempDir(), "previews")
	a, store, buf := setupAppTest(t, Config{CRS: "EPSG:32633", Resolution: 10, OutDir: outDir, PreviewSize: 4, Progress: true}, nil)
	a.cfg.ItemsPath = writeItems(t, store)

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "EPSG:32633")
	assert.Contains(t, out, "4 x 8 (rows x cols)")
	assert.Contains(t, out, "B04")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "chunks")

	data, err := os.ReadFile(filepath.Join(outDir, "B04_000.tif"))
	require.NoError(t, err)
	img, err := geotiff.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 2, img.Height)
	require.NotNil(t, img.GeoBox)
	assert.InDelta(t, 20.0, img.GeoBox.Resolution().X, 1e-9)
	assert.InDelta(t, 500000.0, img.GeoBox.Transform.C, 1e-9)
}

func TestRun_MetadataOnly(t *testing.T) {
	t.Parallel()

	a, store, buf := setupAppTest(t, Config{MetadataOnly: true}, nil)
	a.cfg.ItemsPath = writeItems(t, store)

	err := a.Run(context.Background())

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2 items")
	assert.Contains(t, buf.String(), "collection s2")
	assert.Zero(t, store.Opens("mem://a/B04"), "metadata must not open rasters")
}

func TestRun_ReadFailure(t *testing.T) {
	t.Parallel()

	a, store, _ := setupAppTest(t, Config{CRS: "EPSG:32633", Resolution: 10}, nil)
	a.cfg.ItemsPath = writeItems(t, store)
	store.PutError("mem://b/B04", errors.New("corrupt header"))

	err := a.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load failed")
	assert.Contains(t, err.Error(), "corrupt header")
}

func TestReadItems(t *testing.T) {
	t.Parallel()

	item := string(testutil.NewItem("x").Box(0, 0, 1, 1).JSON(t))
	dir := testutil.WriteFiles(t, map[string]string{
		"a.json":      item,
		"b/c.ndjson":  item + "\n" + strings.Replace(item, `"id":"x"`, `"id":"y"`, 1) + "\n",
		"notes.txt":   "ignored",
		"empty/.keep": "",
	})

	items, err := readItems(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	single, err := readItems(context.Background(), filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = readItems(context.Background(), filepath.Join(dir, "empty"))
	assert.ErrorContains(t, err, "no item files found")

	_, err = readItems(context.Background(), filepath.Join(dir, "missing"))
	assert.ErrorContains(t, err, "items path")
}
