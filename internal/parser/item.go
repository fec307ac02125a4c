package parser

import (
	"context"
	"errors"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/stac"
)

// DefaultCollection names items that do not declare a collection.
const DefaultCollection = "_"

// footprintDensify is the number of segments per edge used when a
// footprint is derived from a native grid.
const footprintDensify = 8

// CollectionID returns the item's collection id or DefaultCollection.
func CollectionID(it *stac.Item) string {
	if it.Collection != "" {
		return it.Collection
	}
	return DefaultCollection
}

// ParseItem normalises one item against its collection metadata. Bands the
// item lacks are left out. The item fails with an errs.ParseError only when
// neither a native grid nor a footprint can be derived.
func ParseItem(ctx context.Context, it *stac.Item, md *model.RasterCollectionMetadata, cfg Config) (*model.ParsedItem, error) {
	logger := ctxlog.FromContext(ctx).With("item_id", it.ID)
	ccfg := cfg.For(md.Name)

	geom, bound, hasFootprint := itemFootprint(it)

	grids := make(map[string]*geo.GeoBox)
	bands := make(map[model.BandKey]*model.RasterSource, len(md.Bands))
	for _, k := range md.Keys() {
		a, ok := it.Assets[k.Asset]
		if !ok || a == nil {
			if !ccfg.Quiet {
				logger.Warn("Asset is missing from item.", "asset", k.Asset)
			}
			continue
		}
		gb, seen := grids[k.Asset]
		if !seen && !ccfg.IgnoreProj {
			var how string
			var err error
			gb, how, err = assetGrid(a, it.Properties.Proj, bound, hasFootprint)
			if err != nil {
				logger.Debug("Asset grid is not usable.", "asset", k.Asset, "error", err)
			} else if gb != nil {
				logger.Debug("Asset grid resolved.", "asset", k.Asset, "source", how)
			}
			grids[k.Asset] = gb
		}

		uri := it.ResolveHref(a.Href)
		if uri == "" {
			return nil, &errs.ParseError{ItemID: it.ID, Reason: "asset " + k.Asset + " has no href"}
		}
		if cfg.PatchURL != nil {
			uri = cfg.PatchURL(uri)
		}
		bands[k] = &model.RasterSource{
			URI:        uri,
			Band:       k.Index,
			Subdataset: ccfg.Assets[k.Asset].Subdataset,
			GeoBox:     gb,
			Meta:       md.Band(k),
		}
	}

	if geom == nil {
		for _, k := range md.Keys() {
			src, ok := bands[k]
			if !ok || src.GeoBox == nil {
				continue
			}
			fp, err := geo.ReprojectFootprint(src.GeoBox.Extent(), src.GeoBox.CRS, geo.WGS84, footprintDensify)
			if err != nil {
				logger.Debug("Cannot derive footprint from grid.", "band", k.String(), "error", err)
				continue
			}
			geom = fp.Geometry
			break
		}
	}
	if geom == nil && !hasProjGrid(grids) {
		return nil, &errs.ParseError{ItemID: it.ID, Reason: "geometry cannot be derived from proj fields, ground control points, or the item footprint"}
	}

	p := &model.ParsedItem{
		ID:            it.ID,
		Href:          it.SelfHref(),
		Collection:    md,
		Bands:         bands,
		Geometry:      geom,
		Datetime:      it.Properties.Datetime,
		StartDatetime: it.Properties.StartDatetime,
		EndDatetime:   it.Properties.EndDatetime,
		Properties:    make(map[string]any, len(it.Properties.Raw)),
	}
	for key := range it.Properties.Raw {
		if v, ok := it.Properties.Get(key); ok {
			p.Properties[key] = v
		}
	}
	return p, nil
}

func hasProjGrid(grids map[string]*geo.GeoBox) bool {
	for _, g := range grids {
		if g != nil {
			return true
		}
	}
	return false
}

// itemFootprint returns the lon/lat footprint from the item geometry, or
// from its bbox when the geometry is null.
func itemFootprint(it *stac.Item) (orb.Geometry, orb.Bound, bool) {
	if it.Geometry != nil && it.Geometry.Coordinates != nil {
		g := it.Geometry.Coordinates
		return g, g.Bound(), true
	}
	var b orb.Bound
	switch len(it.BBox) {
	case 4:
		b = orb.Bound{Min: orb.Point{it.BBox[0], it.BBox[1]}, Max: orb.Point{it.BBox[2], it.BBox[3]}}
	case 6:
		b = orb.Bound{Min: orb.Point{it.BBox[0], it.BBox[1]}, Max: orb.Point{it.BBox[3], it.BBox[4]}}
	default:
		return nil, orb.Bound{}, false
	}
	if b.IsEmpty() {
		return nil, orb.Bound{}, false
	}
	return b.ToPolygon(), b, true
}

// Result is the outcome of parsing a batch of items.
type Result struct {
	Items       []*model.ParsedItem
	Collections map[string]*model.RasterCollectionMetadata
	// Errors holds the per-item parse errors that were skipped.
	Errors []error
}

// ParseItems parses items in order, inferring collection metadata once
// per collection from a sample of that collection's items. Precomputed
// metadata in known is used as is. Item parse errors are collected unless
// cfg.Strict is set; configuration errors always abort.
func ParseItems(ctx context.Context, items []*stac.Item, cfg Config, known map[string]*model.RasterCollectionMetadata) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	byCollection := make(map[string][]*stac.Item)
	var order []string
	for _, it := range items {
		id := CollectionID(it)
		if _, ok := byCollection[id]; !ok {
			order = append(order, id)
		}
		byCollection[id] = append(byCollection[id], it)
	}

	res := &Result{Collections: make(map[string]*model.RasterCollectionMetadata, len(order))}
	for _, id := range order {
		if md, ok := known[id]; ok {
			res.Collections[id] = md
			continue
		}
		sample := byCollection[id]
		if cfg.SampleSize > 0 && len(sample) > cfg.SampleSize {
			sample = sample[:cfg.SampleSize]
		}
		md, err := ExtractCollectionMetadata(ctx, id, sample, cfg.For(id))
		if err != nil {
			return nil, err
		}
		res.Collections[id] = md
	}

	for i, it := range items {
		p, err := ParseItem(ctx, it, res.Collections[CollectionID(it)], cfg)
		if err != nil {
			var pe *errs.ParseError
			if cfg.Strict || !errors.As(err, &pe) {
				return nil, err
			}
			logger.Warn("Skipping item that cannot be parsed.", slog.String("item_id", it.ID), "error", err)
			res.Errors = append(res.Errors, err)
			continue
		}
		p.Index = i
		res.Items = append(res.Items, p)
	}
	return res, nil
}
