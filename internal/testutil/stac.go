package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/stac"
)

// ItemBuilder assembles STAC Item JSON for tests.
type ItemBuilder struct {
	doc map[string]any
}

// NewItem starts an item with a datetime and no assets.
func NewItem(id string) *ItemBuilder {
	return &ItemBuilder{doc: map[string]any{
		"type":         "Feature",
		"stac_version": "1.0.0",
		"id":           id,
		"geometry":     nil,
		"properties":   map[string]any{"datetime": "2020-01-01T00:00:00Z"},
		"assets":       map[string]any{},
		"links":        []any{},
	}}
}

func (b *ItemBuilder) props() map[string]any {
	return b.doc["properties"].(map[string]any)
}

// Collection sets the collection id.
func (b *ItemBuilder) Collection(id string) *ItemBuilder {
	b.doc["collection"] = id
	return b
}

// Datetime sets properties.datetime; an empty string sets it to null.
func (b *ItemBuilder) Datetime(ts string) *ItemBuilder {
	if ts == "" {
		b.props()["datetime"] = nil
		return b
	}
	b.props()["datetime"] = ts
	return b
}

// Prop sets any property.
func (b *ItemBuilder) Prop(key string, v any) *ItemBuilder {
	b.props()[key] = v
	return b
}

// Box sets a rectangular lon/lat geometry and the matching bbox.
func (b *ItemBuilder) Box(minX, minY, maxX, maxY float64) *ItemBuilder {
	b.doc["bbox"] = []float64{minX, minY, maxX, maxY}
	b.doc["geometry"] = map[string]any{
		"type": "Polygon",
		"coordinates": [][][]float64{{
			{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
		}},
	}
	return b
}

// SelfLink sets the item's self href.
func (b *ItemBuilder) SelfLink(href string) *ItemBuilder {
	b.doc["links"] = []any{map[string]any{"rel": "self", "href": href}}
	return b
}

// Asset adds an asset with the given fields.
func (b *ItemBuilder) Asset(name string, fields map[string]any) *ItemBuilder {
	b.doc["assets"].(map[string]any)[name] = fields
	return b
}

// JSON renders the item.
func (b *ItemBuilder) JSON(t testing.TB) []byte {
	t.Helper()
	data, err := json.Marshal(b.doc)
	require.NoError(t, err)
	return data
}

// Build decodes the item through the STAC object model.
func (b *ItemBuilder) Build(t testing.TB) *stac.Item {
	t.Helper()
	var it stac.Item
	require.NoError(t, json.Unmarshal(b.JSON(t), &it))
	return &it
}

// Items builds every item in order.
func Items(t testing.TB, builders ...*ItemBuilder) []*stac.Item {
	t.Helper()
	out := make([]*stac.Item, len(builders))
	for i, b := range builders {
		out[i] = b.Build(t)
	}
	return out
}

// GridAsset describes a GeoTIFF asset with full proj metadata.
func GridAsset(href string, epsg int, rows, cols int, transform [6]float64) map[string]any {
	return map[string]any{
		"href":           href,
		"type":           "image/tiff; application=geotiff",
		"roles":          []string{"data"},
		"proj:epsg":      epsg,
		"proj:shape":     []int{rows, cols},
		"proj:transform": transform[:],
	}
}

// With merges extra fields into an asset map.
func With(asset map[string]any, kv ...any) map[string]any {
	for i := 0; i+1 < len(kv); i += 2 {
		asset[kv[i].(string)] = kv[i+1]
	}
	return asset
}

// RasterBands returns a raster:bands value with one entry per data type.
func RasterBands(dtype string, nodata any, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"data_type": dtype}
		if nodata != nil {
			out[i]["nodata"] = nodata
		}
	}
	return out
}

// CommonNames returns an eo:bands value naming each band.
func CommonNames(names ...string) []map[string]any {
	out := make([]map[string]any, len(names))
	for i, n := range names {
		out[i] = map[string]any{"name": n, "common_name": n}
	}
	return out
}
