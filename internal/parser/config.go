// Package parser turns raw STAC Items into model.ParsedItem records and
// infers the per-collection band set they share.
//
// Parsing is a pure function of the item and its collection configuration:
// no pixel data is touched. Missing optional fields never fail an item; only
// an item whose geometry cannot be derived by any fallback is rejected with
// an errs.ParseError.
package parser

import (
	"github.com/vk/stacgridgo/internal/model"
)

// Wildcard is the configuration key that applies to every collection or
// every asset.
const Wildcard = "*"

// AssetConfig overrides band metadata for one asset (or "asset.N" band).
type AssetConfig struct {
	DataType   string
	Nodata     *float64
	Unit       string
	Subdataset string
}

func (a AssetConfig) meta() model.RasterBandMetadata {
	return model.RasterBandMetadata{DataType: a.DataType, Nodata: a.Nodata, Unit: a.Unit}
}

// CollectionConfig holds per-collection hints.
type CollectionConfig struct {
	Assets     map[string]AssetConfig
	Aliases    map[string][]string
	IgnoreProj bool
	Tolerant   bool
	Quiet      bool
	AliasOrder string
}

// Config configures a parse run.
type Config struct {
	// Collections is keyed by collection id; Wildcard applies to all.
	Collections map[string]CollectionConfig
	// Strict aborts the run on the first item parse error.
	Strict bool
	// SampleSize limits how many items per collection are inspected for
	// the band set. Zero inspects all of them.
	SampleSize int
	// PatchURL rewrites every resolved asset href, e.g. to sign it.
	PatchURL func(string) string
}

// For merges the wildcard entry with the collection's own entry.
func (c Config) For(collection string) CollectionConfig {
	base := c.Collections[Wildcard]
	own, ok := c.Collections[collection]
	if !ok {
		return base
	}
	out := CollectionConfig{
		Assets:     make(map[string]AssetConfig, len(base.Assets)+len(own.Assets)),
		Aliases:    make(map[string][]string, len(base.Aliases)+len(own.Aliases)),
		IgnoreProj: base.IgnoreProj || own.IgnoreProj,
		Tolerant:   base.Tolerant || own.Tolerant,
		Quiet:      base.Quiet || own.Quiet,
		AliasOrder: base.AliasOrder,
	}
	if own.AliasOrder != "" {
		out.AliasOrder = own.AliasOrder
	}
	for k, v := range base.Assets {
		out.Assets[k] = v
	}
	for k, v := range own.Assets {
		out.Assets[k] = v
	}
	for k, v := range base.Aliases {
		out.Aliases[k] = v
	}
	for k, v := range own.Aliases {
		out.Aliases[k] = v
	}
	return out
}

// bandOverride returns the configuration that applies to band k, the most
// specific key winning: "asset.N", then "asset", then Wildcard.
func (c CollectionConfig) bandOverride(k model.BandKey) (defaults, explicit model.RasterBandMetadata, configured bool) {
	defaults = c.Assets[Wildcard].meta()
	if a, ok := c.Assets[k.String()]; ok {
		return defaults, a.meta(), true
	}
	if a, ok := c.Assets[k.Asset]; ok {
		return defaults, a.meta(), true
	}
	return defaults, model.RasterBandMetadata{}, false
}

func (c CollectionConfig) configured(asset string) bool {
	_, ok := c.Assets[asset]
	return ok
}
