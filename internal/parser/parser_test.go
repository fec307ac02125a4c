package parser

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/stac"
	"github.com/vk/stacgridgo/internal/testutil"
)

func parseOne(t *testing.T, it *stac.Item, cfg Config) *model.ParsedItem {
	t.Helper()
	res, err := ParseItems(context.Background(), []*stac.Item{it}, cfg, nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	return res.Items[0]
}

func TestIsRasterData(t *testing.T) {
	testCases := []struct {
		name  string
		asset stac.Asset
		want  bool
	}{
		{"geotiff", stac.Asset{Href: "a.tif", Type: "image/tiff; application=geotiff"}, true},
		{"thumbnail", stac.Asset{Href: "a.png", Type: "image/png", Roles: []string{"thumbnail"}}, false},
		{"json", stac.Asset{Href: "a.json", Type: "application/json"}, false},
		{"data role", stac.Asset{Href: "a.bin", Roles: []string{"data"}}, true},
		{"metadata role", stac.Asset{Href: "a.tif", Roles: []string{"metadata"}}, false},
		{"extension", stac.Asset{Href: "s3://b/a.JP2?x=1"}, true},
		{"unknown", stac.Asset{Href: "a.txt"}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRasterData(&tc.asset))
		})
	}
}

func TestParseItem_ItemLevelProjFallback(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	it := testutil.NewItem("s2").
		Box(14.9, 50.4, 16.5, 51.4).
		Prop("proj:epsg", 32633).
		Prop("proj:shape", []int{100, 200}).
		Prop("proj:transform", []float64{10, 0, 500000, 0, -10, 5600000}).
		Asset("red", map[string]any{"href": "red.tif", "type": "image/tiff"}).
		Build(t)

	// --- Act ---
	p := parseOne(t, it, Config{})

	// --- Assert ---
	src, ok := p.Bands[model.BandKey{Asset: "red", Index: 1}]
	require.True(t, ok)
	require.NotNil(t, src.GeoBox)
	assert.Equal(t, geo.EPSG(32633), src.GeoBox.CRS)
	assert.Equal(t, 200, src.GeoBox.Width)
	assert.Equal(t, 100, src.GeoBox.Height)
	assert.Equal(t, geo.Affine{A: 10, C: 500000, E: -10, F: 5600000}, src.GeoBox.Transform)
	assert.True(t, p.Collection.HasProj)
}

func TestParseItem_AssetProjWinsOverItem(t *testing.T) {
	t.Parallel()
	it := testutil.NewItem("mixed").
		Box(0, 0, 1, 1).
		Prop("proj:epsg", 4326).
		Prop("proj:shape", []int{10, 10}).
		Prop("proj:transform", []float64{0.1, 0, 0, 0, -0.1, 1}).
		Asset("hi", testutil.With(map[string]any{"href": "hi.tif", "type": "image/tiff"},
			"proj:shape", []int{20, 20},
			"proj:transform", []float64{0.05, 0, 0, 0, -0.05, 1})).
		Build(t)

	p := parseOne(t, it, Config{})
	gb := p.Bands[model.BandKey{Asset: "hi", Index: 1}].GeoBox
	require.NotNil(t, gb)
	assert.Equal(t, 20, gb.Width)
	assert.Equal(t, geo.WGS84, gb.CRS, "CRS comes from the item when the asset has none")
	assert.InDelta(t, 0.05, gb.Transform.A, 1e-12)
}

func TestParseItem_GridFallbacks(t *testing.T) {
	t.Run("proj bbox", func(t *testing.T) {
		it := testutil.NewItem("bbox").
			Asset("b", map[string]any{
				"href": "b.tif", "type": "image/tiff",
				"proj:epsg": 3857, "proj:shape": []int{4, 8}, "proj:bbox": []float64{0, 0, 800, 400},
			}).Build(t)
		p := parseOne(t, it, Config{})
		gb := p.Bands[model.BandKey{Asset: "b", Index: 1}].GeoBox
		require.NotNil(t, gb)
		assert.Equal(t, geo.Affine{A: 100, C: 0, E: -100, F: 400}, gb.Transform)
		require.NotNil(t, p.Geometry, "footprint is derived from the grid")
	})

	t.Run("gcps", func(t *testing.T) {
		it := testutil.NewItem("gcps").
			Asset("b", map[string]any{
				"href": "b.tif", "type": "image/tiff",
				"proj:epsg": 32633, "proj:shape": []int{100, 100},
				"proj:gcps": []map[string]float64{
					{"row": 0, "col": 0, "x": 500000, "y": 6000000},
					{"row": 0, "col": 100, "x": 501000, "y": 6000000},
					{"row": 100, "col": 0, "x": 500000, "y": 5999000},
					{"row": 100, "col": 100, "x": 501000, "y": 5999000},
				},
			}).Build(t)
		p := parseOne(t, it, Config{})
		gb := p.Bands[model.BandKey{Asset: "b", Index: 1}].GeoBox
		require.NotNil(t, gb)
		want := geo.Affine{A: 10, C: 500000, E: -10, F: 6000000}
		assert.True(t, gb.Transform.AlmostEqual(want, 1e-6), "got %s", gb.Transform)
	})

	t.Run("footprint and shape", func(t *testing.T) {
		it := testutil.NewItem("fp").
			Box(10, 40, 12, 41).
			Asset("b", map[string]any{"href": "b.tif", "type": "image/tiff", "proj:shape": []int{10, 20}}).
			Build(t)
		p := parseOne(t, it, Config{})
		gb := p.Bands[model.BandKey{Asset: "b", Index: 1}].GeoBox
		require.NotNil(t, gb)
		assert.Equal(t, geo.WGS84, gb.CRS)
		assert.InDelta(t, 0.1, gb.Transform.A, 1e-12)
		assert.InDelta(t, -0.1, gb.Transform.E, 1e-12)
	})

	t.Run("geometry only leaves the grid to the reader", func(t *testing.T) {
		it := testutil.NewItem("geom").
			Box(10, 40, 12, 41).
			Asset("b", map[string]any{"href": "b.tif", "type": "image/tiff"}).
			Build(t)
		p := parseOne(t, it, Config{})
		src := p.Bands[model.BandKey{Asset: "b", Index: 1}]
		require.NotNil(t, src)
		assert.Nil(t, src.GeoBox)
		assert.NotNil(t, p.Geometry)
	})
}

func TestParseItems_NoGeometryIsParseError(t *testing.T) {
	ctx := context.Background()
	bad := testutil.NewItem("bad").
		Asset("b", map[string]any{"href": "b.tif", "type": "image/tiff"})
	good := testutil.NewItem("good").Box(0, 0, 1, 1).
		Asset("b", map[string]any{"href": "b.tif", "type": "image/tiff"})
	items := testutil.Items(t, bad, good)

	t.Run("lenient", func(t *testing.T) {
		res, err := ParseItems(ctx, items, Config{}, nil)
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "good", res.Items[0].ID)
		assert.Equal(t, 1, res.Items[0].Index)
		require.Len(t, res.Errors, 1)
		assert.True(t, errs.IsParse(res.Errors[0]))
	})

	t.Run("strict", func(t *testing.T) {
		_, err := ParseItems(ctx, items, Config{Strict: true}, nil)
		require.Error(t, err)
		assert.True(t, errs.IsParse(err))
		assert.Contains(t, err.Error(), `"bad"`)
	})
}

func TestAliasResolution_Deterministic(t *testing.T) {
	visual := testutil.NewItem("v").Box(0, 0, 1, 1).
		Asset("visual", map[string]any{
			"href": "visual.tif", "type": "image/tiff",
			"eo:bands": testutil.CommonNames("red", "green", "blue"),
		})
	single := testutil.NewItem("s").Box(0, 0, 1, 1).
		Asset("B04", map[string]any{
			"href": "B04.tif", "type": "image/tiff",
			"eo:bands": testutil.CommonNames("red"),
		}).
		Asset("nir_b", map[string]any{"href": "b.tif", "type": "image/tiff", "eo:bands": []map[string]any{{"common_name": "nir"}}}).
		Asset("nir_a", map[string]any{"href": "a.tif", "type": "image/tiff", "eo:bands": []map[string]any{{"common_name": "nir"}}})

	orders := map[string][]*stac.Item{
		"visual first": testutil.Items(t, visual, single),
		"single first": testutil.Items(t, single, visual),
	}
	for name, sample := range orders {
		t.Run(name, func(t *testing.T) {
			md, err := ExtractCollectionMetadata(context.Background(), "c", sample, CollectionConfig{})
			require.NoError(t, err)

			red, err := md.ResolveBand("red")
			require.NoError(t, err)
			assert.Equal(t, model.BandKey{Asset: "B04", Index: 1}, red, "single-band asset wins")

			nir, err := md.ResolveBand("nir")
			require.NoError(t, err)
			assert.Equal(t, model.BandKey{Asset: "nir_a", Index: 1}, nir, "equal counts break alphabetically")

			green, err := md.ResolveBand("green")
			require.NoError(t, err)
			assert.Equal(t, model.BandKey{Asset: "visual", Index: 2}, green)
			assert.Equal(t, "visual.2", md.CanonicalName(green))
		})
	}

	t.Run("configured order", func(t *testing.T) {
		md, err := ExtractCollectionMetadata(context.Background(), "c", orders["visual first"], CollectionConfig{AliasOrder: "alphabetical"})
		require.NoError(t, err)
		red, err := md.ResolveBand("red")
		require.NoError(t, err)
		assert.Equal(t, model.BandKey{Asset: "B04", Index: 1}, red)
	})

	t.Run("configured alias wins", func(t *testing.T) {
		cfg := CollectionConfig{Aliases: map[string][]string{"red": {"visual.1"}}}
		md, err := ExtractCollectionMetadata(context.Background(), "c", orders["visual first"], cfg)
		require.NoError(t, err)
		red, err := md.ResolveBand("red")
		require.NoError(t, err)
		assert.Equal(t, model.BandKey{Asset: "visual", Index: 1}, red)
	})
}

func TestExtractCollectionMetadata_Conflicts(t *testing.T) {
	a := testutil.NewItem("a").Box(0, 0, 1, 1).
		Asset("b", map[string]any{"href": "a.tif", "type": "image/tiff", "raster:bands": testutil.RasterBands("uint16", 0, 1)})
	b := testutil.NewItem("b").Box(0, 0, 1, 1).
		Asset("b", map[string]any{"href": "b.tif", "type": "image/tiff", "raster:bands": testutil.RasterBands("int16", 0, 1)})
	sample := testutil.Items(t, a, b)
	ctx := context.Background()

	_, err := ExtractCollectionMetadata(ctx, "c", sample, CollectionConfig{})
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Contains(t, err.Error(), "data_type uint16 vs int16")

	md, err := ExtractCollectionMetadata(ctx, "c", sample, CollectionConfig{Tolerant: true})
	require.NoError(t, err)
	assert.Equal(t, "uint16", md.Band(model.BandKey{Asset: "b", Index: 1}).DataType)

	override := CollectionConfig{Assets: map[string]AssetConfig{"b": {DataType: "float64", Nodata: model.Float(-1)}}}
	md, err = ExtractCollectionMetadata(ctx, "c", sample, override)
	require.NoError(t, err)
	got := md.Band(model.BandKey{Asset: "b", Index: 1})
	assert.Equal(t, "float64", got.DataType)
	assert.Equal(t, -1.0, *got.Nodata)
}

func TestExtractCollectionMetadata_Defaults(t *testing.T) {
	it := testutil.NewItem("a").Box(0, 0, 1, 1).
		Asset("b", map[string]any{"href": "a.tif", "type": "image/tiff"}).
		Asset("thumb", map[string]any{"href": "t.png", "type": "image/png", "roles": []string{"thumbnail"}}).
		Asset("meta", map[string]any{"href": "m.xml", "type": "application/xml"})

	md, err := ExtractCollectionMetadata(context.Background(), "c", testutil.Items(t, it), CollectionConfig{
		Assets: map[string]AssetConfig{Wildcard: {Unit: "m"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, md.CanonicalNames())
	got := md.Band(model.BandKey{Asset: "b", Index: 1})
	assert.Equal(t, "float32", got.DataType)
	assert.Nil(t, got.Nodata)
	assert.Equal(t, "m", got.Unit)
}

func TestParseItems_MissingAssetIsSkipped(t *testing.T) {
	full := testutil.NewItem("full").Box(0, 0, 1, 1).
		Asset("red", map[string]any{"href": "r.tif", "type": "image/tiff"}).
		Asset("blue", map[string]any{"href": "b.tif", "type": "image/tiff"})
	partial := testutil.NewItem("partial").Box(1, 0, 2, 1).
		Asset("red", map[string]any{"href": "r2.tif", "type": "image/tiff"})

	res, err := ParseItems(context.Background(), testutil.Items(t, full, partial), Config{}, nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	p := res.Items[1]
	_, ok := p.Source("blue")
	assert.False(t, ok)
	_, ok = p.Source("red")
	assert.True(t, ok)
}

func TestParseItem_HrefResolutionAndPatch(t *testing.T) {
	it := testutil.NewItem("h").Box(0, 0, 1, 1).
		SelfLink("https://example.com/items/h.json").
		Asset("b", map[string]any{"href": "../data/b.tif", "type": "image/tiff"}).
		Build(t)
	p := parseOne(t, it, Config{PatchURL: func(u string) string { return u + "?sig=1" }})
	assert.Equal(t, "https://example.com/data/b.tif?sig=1", p.Bands[model.BandKey{Asset: "b", Index: 1}].URI)
	assert.Equal(t, "https://example.com/items/h.json", p.Href)
}

func TestFootprintRoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		epsg      int
		transform [6]float64
		shape     [2]int
	}{
		{"geographic", 4326, [6]float64{0.001, 0, 10, 0, -0.001, 46}, [2]int{1000, 1000}},
		{"utm", 32632, [6]float64{30, 0, 600000, 0, -30, 5100000}, [2]int{512, 256}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			it := testutil.NewItem(tc.name).
				Asset("b", testutil.GridAsset("b.tif", tc.epsg, tc.shape[0], tc.shape[1], tc.transform)).
				Build(t)

			// --- Act ---
			p := parseOne(t, it, Config{})
			src := p.Bands[model.BandKey{Asset: "b", Index: 1}]
			require.NotNil(t, src.GeoBox)
			require.NotNil(t, p.Geometry)
			back, err := geo.TransformGeometry(p.Geometry, geo.WGS84, src.GeoBox.CRS)
			require.NoError(t, err)

			// --- Assert ---
			want := src.GeoBox.Bound()
			got := back.Bound()
			for i := 0; i < 2; i++ {
				assert.InDelta(t, want.Min[i], got.Min[i], 1e-4)
				assert.InDelta(t, want.Max[i], got.Max[i], 1e-4)
			}
		})
	}

	t.Run("item geometry matches grid", func(t *testing.T) {
		it := testutil.NewItem("g").Box(10, 45, 11, 46).
			Asset("b", testutil.GridAsset("b.tif", 4326, 1000, 1000, [6]float64{0.001, 0, 10, 0, -0.001, 46})).
			Build(t)
		p := parseOne(t, it, Config{})
		gb := p.Bands[model.BandKey{Asset: "b", Index: 1}].GeoBox
		fp, err := geo.ReprojectFootprint(gb.Extent(), gb.CRS, geo.WGS84, 1)
		require.NoError(t, err)
		want := p.Geometry.Bound()
		got := orb.Polygon(fp.Geometry).Bound()
		assert.InDelta(t, want.Min[0], got.Min[0], 1e-9)
		assert.InDelta(t, want.Max[1], got.Max[1], 1e-9)
	})
}

func TestFitAffine_Collinear(t *testing.T) {
	_, err := FitAffine([]stac.GCP{{Row: 0, Col: 0}, {Row: 1, Col: 1}, {Row: 2, Col: 2}})
	assert.ErrorContains(t, err, "collinear")
}

func TestConfigFor(t *testing.T) {
	cfg := Config{Collections: map[string]CollectionConfig{
		Wildcard: {Assets: map[string]AssetConfig{Wildcard: {Unit: "m"}}, Quiet: true},
		"s2":     {Assets: map[string]AssetConfig{"B01": {DataType: "uint16"}}, AliasOrder: "alphabetical"},
	}}
	got := cfg.For("s2")
	assert.True(t, got.Quiet)
	assert.Equal(t, "alphabetical", got.AliasOrder)
	assert.Len(t, got.Assets, 2)
	assert.Equal(t, cfg.Collections[Wildcard], cfg.For("other"))
}
