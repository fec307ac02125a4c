package raster

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/geo"
)

func utm(t *testing.T, res float64, w, h int) geo.GeoBox {
	t.Helper()
	gb, err := geo.NewGeoBox(geo.EPSG(32633), geo.Affine{A: res, C: 500000, E: -res, F: 5600000}, w, h)
	require.NoError(t, err)
	return gb
}

// ramp is a w x h band where pixel (r, c) holds r*w + c.
func ramp(w, h int) []float64 {
	out := make([]float64, w*h)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func memReader(t *testing.T, gb geo.GeoBox, band []float64, nodata *float64, overviews ...int) *MemReader {
	t.Helper()
	r, err := NewMemReader(gb, [][]float64{band}, nodata, "float32", overviews...)
	require.NoError(t, err)
	return r
}

func TestWarp_IdentityForInterpolatingKernels(t *testing.T) {
	src := utm(t, 10, 4, 4)
	rd := memReader(t, src, ramp(4, 4), nil)

	for _, m := range []Resampling{Nearest, Bilinear, Cubic, Lanczos, Average, Med, Min, Max, Mode} {
		t.Run(string(m), func(t *testing.T) {
			out, err := Warp(context.Background(), rd, src, src, WarpOptions{Band: 1, Resampling: m})
			require.NoError(t, err)
			require.NotNil(t, out)
			for i, v := range out.Data {
				assert.InDelta(t, float64(i), v, 1e-9, "pixel %d", i)
			}
		})
	}
}

func TestWarp_SubWindow(t *testing.T) {
	src := utm(t, 10, 4, 4)
	rd := memReader(t, src, ramp(4, 4), nil)
	dst := src.Slice(geo.Window{Row: 1, Col: 2, Rows: 2, Cols: 2})

	out, err := Warp(context.Background(), rd, src, dst, WarpOptions{Band: 1})
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{6, 7, 10, 11}, out.Data); diff != "" {
		t.Errorf("window mismatch (-want +got):\n%s", diff)
	}
}

func TestWarp_AggregatingDownsample(t *testing.T) {
	src := utm(t, 10, 4, 4)
	rd := memReader(t, src, ramp(4, 4), nil)
	dst := utm(t, 20, 2, 2)

	tests := []struct {
		method Resampling
		want   []float64
	}{
		{Average, []float64{2.5, 4.5, 10.5, 12.5}},
		{Sum, []float64{10, 18, 42, 50}},
		{Min, []float64{0, 2, 8, 10}},
		{Max, []float64{5, 7, 13, 15}},
		{Med, []float64{1, 3, 9, 11}},
	}
	for _, tc := range tests {
		t.Run(string(tc.method), func(t *testing.T) {
			out, err := Warp(context.Background(), rd, src, dst, WarpOptions{Band: 1, Resampling: tc.method})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Data)
		})
	}
}

func TestWarp_UsesOverviews(t *testing.T) {
	src := utm(t, 10, 4, 4)
	rd := memReader(t, src, ramp(4, 4), nil, 2)
	dst := utm(t, 20, 2, 2)

	full, err := Warp(context.Background(), rd, src, dst, WarpOptions{Band: 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7, 13, 15}, full.Data, "nearest picks the pixel under each centre")

	ov, err := Warp(context.Background(), rd, src, dst, WarpOptions{Band: 1, UseOverviews: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 4.5, 10.5, 12.5}, ov.Data, "overview level holds block means")
}

func TestWarp_NodataAndCoverage(t *testing.T) {
	src := utm(t, 10, 2, 2)
	nodata := -1.0
	rd := memReader(t, src, []float64{1, -1, 3, 4}, &nodata)

	// A destination twice as wide extends past the source to the east.
	dst := utm(t, 10, 4, 2)
	out, err := Warp(context.Background(), rd, src, dst, WarpOptions{Band: 1, SrcNodata: &nodata})
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Data[0])
	assert.True(t, math.IsNaN(out.Data[1]), "nodata masked")
	assert.True(t, math.IsNaN(out.Data[2]), "outside the source")
	assert.Equal(t, 3, out.Valid())
}

func TestWarp_NoOverlap(t *testing.T) {
	src := utm(t, 10, 2, 2)
	rd := memReader(t, src, ramp(2, 2), nil)
	far, err := geo.NewGeoBox(geo.EPSG(32633), geo.Affine{A: 10, C: 600000, E: -10, F: 5600000}, 2, 2)
	require.NoError(t, err)

	out, err := Warp(context.Background(), rd, src, far, WarpOptions{Band: 1})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Zero(t, rd.Reads())
}

func TestWarp_RotatedDestination(t *testing.T) {
	src := utm(t, 10, 8, 8)
	rd := memReader(t, src, ramp(8, 8), nil)
	c := src.Center()
	// A 45 degree grid centred on the source.
	tr := geo.Translation(c[0], c[1]).Mul(geo.Rotation(45)).Mul(geo.Scale(10, -10)).Mul(geo.Translation(-4, -4))
	dst, err := geo.NewGeoBox(src.CRS, tr, 8, 8)
	require.NoError(t, err)

	out, err := Warp(context.Background(), rd, src, dst, WarpOptions{Band: 1})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Greater(t, out.Valid(), 20)
	assert.Less(t, out.Valid(), 64, "rotated corners fall outside the source")
	for _, v := range out.Data {
		if !math.IsNaN(v) {
			assert.Equal(t, math.Trunc(v), v, "nearest yields source values")
		}
	}
}

func TestWarp_Reprojects(t *testing.T) {
	src, err := geo.NewGeoBox(geo.WGS84, geo.Affine{A: 0.001, C: 15, E: -0.001, F: 50.01}, 10, 10)
	require.NoError(t, err)
	rd := memReader(t, src, ramp(10, 10), nil)
	dst, err := geo.FromBounds(
		mustBound(t, src, geo.EPSG(32633)), geo.EPSG(32633), geo.Square(50), geo.AnchorEdge, orb.Point{},
	)
	require.NoError(t, err)

	out, err := Warp(context.Background(), rd, src, dst, WarpOptions{Band: 1, Resampling: Bilinear})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Greater(t, out.Valid(), 0)
}

func mustBound(t *testing.T, gb geo.GeoBox, crs geo.CRS) orb.Bound {
	t.Helper()
	fp, err := geo.ReprojectFootprint(gb.Extent(), gb.CRS, crs, 8)
	require.NoError(t, err)
	return fp.Geometry.Bound()
}

func TestComposite(t *testing.T) {
	nan := math.NaN()
	base := func() *Plane { return &Plane{Rows: 1, Cols: 3, Data: []float64{1, nan, 3}} }
	top := &Plane{Rows: 1, Cols: 3, Data: []float64{9, 8, nan}}

	last := base()
	Composite(last, top, false)
	assert.Equal(t, []float64{9, 8, 3}, last.Data)

	first := base()
	Composite(first, top, true)
	assert.Equal(t, []float64{1, 8, 3}, first.Data)
}

func TestParseResampling(t *testing.T) {
	for in, want := range map[string]Resampling{"": Nearest, "Bilinear": Bilinear, "cubicspline": CubicSpline, "median": Med, "q3": Q3} {
		got, err := ParseResampling(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseResampling("sharpen")
	assert.ErrorContains(t, err, "unknown resampling method")
}

func TestReduce(t *testing.T) {
	vals := []float64{4, 1, 3, 3, 2}
	assert.Equal(t, 3.0, Mode.reduce(vals))
	assert.Equal(t, 3.0, Med.reduce(vals))
	assert.Equal(t, 2.0, Q1.reduce(vals))
	assert.InDelta(t, math.Sqrt(39.0/5), RMS.reduce(vals), 1e-12)
	assert.Equal(t, 1.0, Mode.reduce([]float64{2, 1}), "ties go to the smallest")
	assert.True(t, math.IsNaN(Average.reduce(nil)))
}

func TestMemReader_Errors(t *testing.T) {
	src := utm(t, 10, 2, 2)
	rd := memReader(t, src, ramp(2, 2), nil)
	ctx := context.Background()

	_, err := rd.ReadWindow(ctx, 2, geo.Window{Rows: 1, Cols: 1}, 1)
	assert.ErrorContains(t, err, "band 2 out of range")
	_, err = rd.ReadWindow(ctx, 1, geo.Window{Row: 1, Rows: 2, Cols: 1}, 1)
	assert.ErrorContains(t, err, "outside raster")
	_, err = rd.ReadWindow(ctx, 1, geo.Window{Rows: 1, Cols: 1}, 4)
	assert.ErrorContains(t, err, "no overview")

	require.NoError(t, rd.Close())
	_, err = rd.ReadWindow(ctx, 1, geo.Window{Rows: 1, Cols: 1}, 1)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = NewMemReader(src, [][]float64{{1}}, nil, "uint8")
	assert.ErrorContains(t, err, "has 1 pixels")
}

func TestPickOverview(t *testing.T) {
	assert.Equal(t, 1, PickOverview(nil, 10))
	assert.Equal(t, 4, PickOverview([]int{2, 4, 8}, 5.5))
	assert.Equal(t, 1, PickOverview([]int{2, 4}, 1.9))
}
