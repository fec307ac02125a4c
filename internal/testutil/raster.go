package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/modules/memraster"
)

// UTMGrid is a north-up grid in UTM zone 33N.
func UTMGrid(t testing.TB, x0, y0, res float64, rows, cols int) geo.GeoBox {
	t.Helper()
	gb, err := geo.NewGeoBox(geo.EPSG(32633), geo.Affine{A: res, C: x0, E: -res, F: y0}, cols, rows)
	require.NoError(t, err)
	return gb
}

// Fill generates a row-major band for a grid.
func Fill(gb geo.GeoBox, fn func(row, col int) float64) []float64 {
	out := make([]float64, gb.Width*gb.Height)
	for r := 0; r < gb.Height; r++ {
		for c := 0; c < gb.Width; c++ {
			out[r*gb.Width+c] = fn(r, c)
		}
	}
	return out
}

// MemAsset stores one generated band in store under uri and returns the
// matching STAC asset with full proj and raster metadata.
func MemAsset(store *memraster.Store, uri string, gb geo.GeoBox, dtype string, nodata *float64, fn func(row, col int) float64) map[string]any {
	store.Put(uri, gb, [][]float64{Fill(gb, fn)}, nodata, dtype)
	a := GridAsset(uri, gb.CRS.EPSG, gb.Height, gb.Width, gb.Transform.Coefficients())
	rb := map[string]any{"data_type": dtype}
	if nodata != nil {
		rb["nodata"] = *nodata
	}
	a["raster:bands"] = []map[string]any{rb}
	return a
}

// Footprint sets the item geometry to the outline of a grid reprojected to
// lon/lat, and the bbox to its bounds.
func (b *ItemBuilder) Footprint(t testing.TB, gb geo.GeoBox) *ItemBuilder {
	t.Helper()
	fp, err := geo.ReprojectFootprint(gb.Extent(), gb.CRS, geo.WGS84, 8)
	require.NoError(t, err)
	ring := make([][]float64, len(fp.Geometry[0]))
	for i, p := range fp.Geometry[0] {
		ring[i] = []float64{p[0], p[1]}
	}
	bd := fp.Geometry.Bound()
	b.doc["bbox"] = []float64{bd.Min[0], bd.Min[1], bd.Max[0], bd.Max[1]}
	b.doc["geometry"] = map[string]any{"type": "Polygon", "coordinates": [][][]float64{ring}}
	return b
}
