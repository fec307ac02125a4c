package integration_tests

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/app"
	"github.com/vk/stacgridgo/modules/memraster"
)

func twoScenes(t *testing.T, store *memraster.Store) string {
	return itemsJSON(t, store,
		scene{id: "good", datetime: "2021-05-01T10:00:00Z", x0: 500000, value: 1, bands: []string{"B04"}},
		scene{id: "bad", datetime: "2021-05-01T10:00:00Z", x0: 500040, value: 101, bands: []string{"B04"}},
	)
}

// TestError_ReadFailureFailsByDefault checks a broken asset aborts the
// load unless fail_on_error is disabled.
func TestError_ReadFailureFailsByDefault(t *testing.T) {
	t.Parallel()

	store := memraster.NewStore()
	files := map[string]string{"items.json": twoScenes(t, store)}
	store.PutError("mem://bad/B04", errors.New("truncated strip"))

	res := runApp(t, store, files, app.Config{CRS: "EPSG:32633", Resolution: 10})

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "truncated strip")
	assert.Contains(t, res.Err.Error(), `"bad"`)
}

// TestError_ReadFailureSkipped checks a tolerant load reports the skipped
// asset and fills its pixels with nodata.
func TestError_ReadFailureSkipped(t *testing.T) {
	t.Parallel()

	store := memraster.NewStore()
	files := map[string]string{
		"items.json": twoScenes(t, store),
		"load.hcl":   `load { fail_on_error = false }`,
	}
	store.PutError("mem://bad/B04", errors.New("truncated strip"))

	res := runApp(t, store, files, app.Config{ConfigPaths: []string{"load.hcl"}, CRS: "EPSG:32633", Resolution: 10})

	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "1 skipped assets")
	assert.Contains(t, res.Output, "50.0%")
	assert.Zero(t, store.Live(), "every opened reader is closed")
}

// TestError_InvalidConfiguration checks configuration errors surface before
// any pixel is read.
func TestError_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		load    string
		wantErr string
	}{
		{name: "unknown band", load: `load { bands = ["B99"] }`, wantErr: `band "B99" is not present in any collection`},
		{name: "unknown fuse", load: `load { fuse = "mean" }`, wantErr: "unknown fuse mode"},
		{name: "unknown dtype", load: `load { dtype = "complex64" }`, wantErr: "unsupported data type"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := memraster.NewStore()
			files := map[string]string{"items.json": twoScenes(t, store), "load.hcl": tc.load}

			res := runApp(t, store, files, app.Config{ConfigPaths: []string{"load.hcl"}, CRS: "EPSG:32633", Resolution: 10})

			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tc.wantErr)
			assert.Zero(t, store.Opens("mem://good/B04"))
		})
	}
}

// TestError_InvalidHCLIsRejected checks a syntax error stops startup.
func TestError_InvalidHCLIsRejected(t *testing.T) {
	t.Parallel()

	store := memraster.NewStore()
	files := map[string]string{"items.json": twoScenes(t, store), "load.hcl": `load { bands = [`}

	res := runApp(t, store, files, app.Config{ConfigPaths: []string{"load.hcl"}})

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "failed to parse HCL file")
}
