package parser

import (
	"context"
	"fmt"
	"slices"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/stac"
)

// ExtractCollectionMetadata infers the canonical band set of a collection
// from a sample of its items. The band set is the union over the sample;
// each band's metadata comes from the first item that has it unless the
// configuration overrides it. Items that disagree on data type or nodata
// fail with a ConfigurationError unless cfg.Tolerant is set.
func ExtractCollectionMetadata(ctx context.Context, name string, sample []*stac.Item, cfg CollectionConfig) (*model.RasterCollectionMetadata, error) {
	logger := ctxlog.FromContext(ctx).With("collection", name)

	order, err := model.ParseAliasOrder(cfg.AliasOrder)
	if err != nil {
		return nil, &errs.ConfigurationError{Field: "alias_order", Reason: err.Error()}
	}
	if len(sample) == 0 {
		return nil, errs.Configuration("collection", "no items to infer bands of %q from", name)
	}

	hasProj := false
	if !cfg.IgnoreProj {
		for _, it := range sample {
			for _, a := range it.Assets {
				if IsRasterData(a) && hasProjData(a.Proj.Merge(it.Properties.Proj)) {
					hasProj = true
				}
			}
		}
	}

	bands := make(map[model.BandKey]model.RasterBandMetadata)
	declared := make(map[model.BandKey]model.RasterBandMetadata)
	firstSeen := make(map[model.BandKey]string)
	claims := make(map[string][]model.BandKey)

	for _, it := range sample {
		assets := dataAssets(it, cfg, hasProj)
		for _, assetName := range assets {
			a := it.Assets[assetName]
			for i := 0; i < a.BandCount(); i++ {
				k := model.BandKey{Asset: assetName, Index: i + 1}
				ext := declaredMeta(a, i)
				defaults, explicit, configured := cfg.bandOverride(k)

				if prev, seen := declared[k]; seen {
					if configured {
						continue
					}
					if c := prev.Conflicts(ext); c != "" {
						reason := fmt.Sprintf("items %q and %q disagree on %s", firstSeen[k], it.ID, c)
						if !cfg.Tolerant {
							return nil, &errs.ConfigurationError{Field: "bands." + k.String(), Reason: reason}
						}
						logger.Warn("Band metadata conflict, keeping first value.", "band", k.String(), "reason", reason)
					}
					continue
				}
				declared[k] = ext
				firstSeen[k] = it.ID
				bands[k] = defaults.Patch(ext).Patch(explicit)

				if eo, ok := a.EOBand(i); ok {
					if eo.CommonName != "" {
						claims[eo.CommonName] = append(claims[eo.CommonName], k)
					}
					if eo.Name != "" && eo.Name != assetName && eo.Name != eo.CommonName {
						claims[eo.Name] = append(claims[eo.Name], k)
					}
				}
			}
		}
		for _, eo := range it.Properties.EOBands {
			if eo.CommonName == "" || !slices.Contains(assets, eo.Name) {
				continue
			}
			claims[eo.CommonName] = append(claims[eo.CommonName], model.BandKey{Asset: eo.Name, Index: 1})
		}
	}

	if len(bands) == 0 {
		return nil, errs.Configuration("bands", "unable to find any raster bands in collection %q", name)
	}

	for alias, names := range cfg.Aliases {
		keys := make([]model.BandKey, 0, len(names))
		for _, n := range names {
			keys = append(keys, model.ParseBandKey(n))
		}
		claims[alias] = keys
	}

	md := model.NewCollectionMetadata(name, bands, claims, order)
	md.HasProj = hasProj
	for alias, keys := range md.Aliases {
		if len(keys) > 1 && !cfg.Quiet {
			logger.Debug("Alias is claimed by several bands.", "alias", alias, "chosen", keys[0].String(), "candidates", len(keys))
		}
	}
	logger.Debug("Collection metadata extracted.", "band_count", len(bands), "alias_count", len(md.Aliases), "has_proj", hasProj)
	return md, nil
}

// FromCollection builds collection metadata from the item_assets schema
// of a STAC Collection document.
func FromCollection(ctx context.Context, c *stac.Collection, cfg CollectionConfig) (*model.RasterCollectionMetadata, error) {
	if c == nil || len(c.ItemAssets) == 0 {
		return nil, errs.Configuration("collection", "collection has no item_assets")
	}
	pseudo := &stac.Item{ID: c.ID + "/item_assets", Collection: c.ID, Assets: c.ItemAssets}
	return ExtractCollectionMetadata(ctx, c.ID, []*stac.Item{pseudo}, cfg)
}

// dataAssets lists the raster asset keys of an item in sorted order. When
// proj data is expected, assets without it are dropped unless that would
// leave nothing.
func dataAssets(it *stac.Item, cfg CollectionConfig, checkProj bool) []string {
	pick := func(checkProj bool) []string {
		var out []string
		for name, a := range it.Assets {
			if a == nil {
				continue
			}
			if cfg.configured(name) {
				out = append(out, name)
				continue
			}
			if !IsRasterData(a) {
				continue
			}
			if checkProj && !hasProjData(a.Proj.Merge(it.Properties.Proj)) {
				continue
			}
			out = append(out, name)
		}
		slices.Sort(out)
		return out
	}
	out := pick(checkProj)
	if len(out) == 0 && checkProj {
		out = pick(false)
	}
	return out
}

func declaredMeta(a *stac.Asset, i int) model.RasterBandMetadata {
	rb, ok := a.RasterBand(i)
	if !ok {
		return model.RasterBandMetadata{}
	}
	return model.RasterBandMetadata{
		DataType: rb.DataType,
		Nodata:   rb.Nodata.Float(),
		Unit:     rb.Unit,
		Scale:    rb.Scale,
		Offset:   rb.Offset,
	}
}
