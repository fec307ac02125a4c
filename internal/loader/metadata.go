package loader

import (
	"context"

	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/parser"
	"github.com/vk/stacgridgo/internal/stac"
)

// Metadata parses items and infers their collection metadata without any
// pixel I/O.
func Metadata(ctx context.Context, items []*stac.Item, opts Options) (*parser.Result, error) {
	return parser.ParseItems(ctx, items, opts.Parser, opts.Collections)
}

// band is one output band and the metadata it was resolved against.
type band struct {
	name string
	meta model.RasterBandMetadata
}

// collectionsInOrder lists the collections of parsed items in first-use
// order.
func collectionsInOrder(items []*model.ParsedItem) []*model.RasterCollectionMetadata {
	seen := make(map[*model.RasterCollectionMetadata]bool)
	var out []*model.RasterCollectionMetadata
	for _, it := range items {
		if it.Collection == nil || seen[it.Collection] {
			continue
		}
		seen[it.Collection] = true
		out = append(out, it.Collection)
	}
	return out
}

// resolveBands maps requested names to band metadata, taking the first
// collection that knows each name. With no request every canonical band
// of every collection is loaded.
func resolveBands(items []*model.ParsedItem, requested []string) ([]band, error) {
	cols := collectionsInOrder(items)
	names := requested
	if len(names) == 0 {
		seen := make(map[string]bool)
		for _, md := range cols {
			for _, n := range md.CanonicalNames() {
				if !seen[n] {
					seen[n] = true
					names = append(names, n)
				}
			}
		}
	}
	if len(names) == 0 {
		return nil, errs.Configuration("bands", "no raster bands found in items")
	}

	out := make([]band, 0, len(names))
	for _, n := range names {
		found := false
		for _, md := range cols {
			k, err := md.ResolveBand(n)
			if err != nil {
				continue
			}
			out = append(out, band{name: n, meta: md.Band(k)})
			found = true
			break
		}
		if !found {
			return nil, errs.Configuration("bands", "band %q is not present in any collection", n)
		}
	}
	return out, nil
}
