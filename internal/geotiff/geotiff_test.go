package geotiff

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/geo"
)

func encode(t *testing.T, img *Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	utm, err := geo.NewGeoBox(geo.EPSG(32633), geo.Affine{A: 10, C: 500000, E: -10, F: 5600000}, 3, 2)
	require.NoError(t, err)
	rotated, err := geo.NewGeoBox(geo.EPSG(32633), geo.Affine{A: 7, B: 7, C: 500000, D: 7, E: -7, F: 5600000}, 3, 2)
	require.NoError(t, err)
	wgs, err := geo.NewGeoBox(geo.WGS84, geo.Affine{A: 0.5, C: 10, E: -0.5, F: 45}, 3, 2)
	require.NoError(t, err)
	nodata := 0.0

	testCases := []struct {
		name string
		img  *Image
	}{
		{"gray8 utm", &Image{Width: 3, Height: 2, DataType: "uint8", Bands: [][]float64{{1, 2, 3, 4, 5, 255}}, GeoBox: &utm}},
		{"gray16 nodata", &Image{Width: 3, Height: 2, DataType: "uint16", Bands: [][]float64{{0, 1000, 2000, 3000, 4000, 65535}}, GeoBox: &wgs, Nodata: &nodata}},
		{"rotated", &Image{Width: 3, Height: 2, DataType: "uint8", Bands: [][]float64{{9, 8, 7, 6, 5, 4}}, GeoBox: &rotated}},
		{"rgb", &Image{Width: 3, Height: 2, DataType: "uint8", Bands: [][]float64{{1, 2, 3, 4, 5, 6}, {10, 20, 30, 40, 50, 60}, {7, 7, 7, 7, 7, 7}}, GeoBox: &utm}},
		{"no georef", &Image{Width: 3, Height: 2, DataType: "uint8", Bands: [][]float64{{1, 1, 1, 1, 1, 1}}}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			// --- Act ---
			got, err := Decode(encode(t, tc.img))

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, tc.img.Width, got.Width)
			assert.Equal(t, tc.img.Height, got.Height)
			assert.Equal(t, tc.img.DataType, got.DataType)
			assert.Equal(t, tc.img.Bands, got.Bands)
			assert.Equal(t, tc.img.Nodata, got.Nodata)
			if tc.img.GeoBox == nil {
				assert.Nil(t, got.GeoBox)
				return
			}
			require.NotNil(t, got.GeoBox)
			assert.Equal(t, tc.img.GeoBox.CRS, got.GeoBox.CRS)
			assert.True(t, tc.img.GeoBox.Transform.AlmostEqual(got.GeoBox.Transform, 1e-9), "transform %s", got.GeoBox.Transform)
		})
	}
}

func TestEncode_NaNAndClamp(t *testing.T) {
	t.Parallel()
	band := []float64{-5, 300, 12.6, math.NaN()}
	got, err := Decode(encode(t, &Image{Width: 2, Height: 2, DataType: "uint8", Bands: [][]float64{band}}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 255, 13, 0}, got.Bands[0])
}

func TestEncode_Rejects(t *testing.T) {
	t.Parallel()
	assert.ErrorContains(t, Encode(&bytes.Buffer{}, &Image{Width: 1, Height: 1, DataType: "complex64", Bands: [][]float64{{1}}}), "cannot encode data type")
	assert.ErrorContains(t, Encode(&bytes.Buffer{}, &Image{Width: 1, Height: 1, DataType: "uint8", Bands: [][]float64{{1}, {2}}}), "cannot encode 2 bands")
	assert.ErrorContains(t, Encode(&bytes.Buffer{}, &Image{Width: 2, Height: 1, DataType: "uint8", Bands: [][]float64{{1}}}), "band 1 has 1 pixels")
}

func TestDecode_NotTIFF(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("PNG\x00\x00\x00\x00\x00"))
	assert.ErrorIs(t, err, ErrNotTIFF)

	_, err = Decode([]byte("II"))
	assert.ErrorIs(t, err, ErrNotTIFF)

	big := []byte{'I', 'I', 43, 0, 8, 0, 0, 0}
	_, err = Decode(big)
	assert.ErrorContains(t, err, "BigTIFF")

	truncated := []byte{'I', 'I', 42, 0, 0xff, 0, 0, 0}
	_, err = Decode(truncated)
	assert.ErrorContains(t, err, "beyond end of file")
}

func TestGeoref(t *testing.T) {
	t.Parallel()
	ifdOf := func(es ...entry) *ifd {
		d := &ifd{bo: binary.LittleEndian, entries: map[uint16]entry{}}
		for _, e := range es {
			d.entries[e.tag] = e
		}
		return d
	}
	keys := func(rasterType, crsKey, code uint16) entry {
		return shortEntry(tagGeoKeyDirectory, 1, 1, 0, 2, keyRasterType, 0, 1, rasterType, crsKey, 0, 1, code)
	}
	scale := doubleEntry(tagModelPixelScale, 2, 2, 0)
	tie := doubleEntry(tagModelTiepoint, 0, 0, 0, 100, 200, 0)

	t.Run("pixel is area", func(t *testing.T) {
		gb, err := georef(ifdOf(scale, tie, keys(1, keyProjectedType, 3857)), 4, 4)
		require.NoError(t, err)
		require.NotNil(t, gb)
		assert.Equal(t, geo.EPSG(3857), gb.CRS)
		assert.Equal(t, geo.Affine{A: 2, C: 100, E: -2, F: 200}, gb.Transform)
	})

	t.Run("pixel is point shifts half a pixel", func(t *testing.T) {
		gb, err := georef(ifdOf(scale, tie, keys(rasterPixelIsPoint, keyProjectedType, 3857)), 4, 4)
		require.NoError(t, err)
		require.NotNil(t, gb)
		assert.Equal(t, geo.Affine{A: 2, C: 99, E: -2, F: 201}, gb.Transform)
	})

	t.Run("user defined crs", func(t *testing.T) {
		gb, err := georef(ifdOf(scale, tie, keys(1, keyProjectedType, userDefined)), 4, 4)
		require.NoError(t, err)
		assert.Nil(t, gb)
	})

	t.Run("no transform", func(t *testing.T) {
		gb, err := georef(ifdOf(keys(1, keyGeographicType, 4326)), 4, 4)
		require.NoError(t, err)
		assert.Nil(t, gb)
	})

	t.Run("singular", func(t *testing.T) {
		_, err := georef(ifdOf(doubleEntry(tagModelPixelScale, 0, 0, 0), tie, keys(1, keyGeographicType, 4326)), 4, 4)
		assert.ErrorContains(t, err, "invalid georeferencing")
	})
}

func TestDataType(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		bits, format uint64
		want         string
	}{
		{8, 1, "uint8"}, {16, 1, "uint16"}, {16, 2, "int16"}, {32, 3, "float32"}, {64, 3, "float64"},
	} {
		got, err := dataType(tc.bits, tc.format)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := dataType(12, 1)
	assert.Error(t, err)
}

func TestNewReader(t *testing.T) {
	t.Parallel()
	gb, err := geo.NewGeoBox(geo.EPSG(3857), geo.Affine{A: 1, E: -1}, 4, 4)
	require.NoError(t, err)
	band := make([]float64, 16)
	for i := range band {
		band[i] = float64(i)
	}
	img, err := Decode(encode(t, &Image{Width: 4, Height: 4, DataType: "uint8", Bands: [][]float64{band}, GeoBox: &gb}))
	require.NoError(t, err)

	r, err := NewReader(img, DefaultOverviews(4, 4, 2)...)
	require.NoError(t, err)
	info := r.Info()
	assert.Equal(t, 1, info.Bands)
	assert.Equal(t, []int{2}, info.Overviews)
	assert.Equal(t, "uint8", info.DataType)
	require.NotNil(t, info.GeoBox)
	assert.Equal(t, gb.Transform, info.GeoBox.Transform)

	p, err := r.ReadWindow(context.Background(), 1, geo.Window{Rows: 2, Cols: 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 4.5, 10.5, 12.5}, p.Data)
}

func TestDefaultOverviews(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []int{2, 4, 8}, DefaultOverviews(1024, 512, 64))
	assert.Empty(t, DefaultOverviews(100, 100, 64))
}
