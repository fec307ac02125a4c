package model

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// AliasCandidate is one band that claims an alias.
type AliasCandidate struct {
	Key       BandKey
	BandCount int
}

// AliasOrder compares two candidates for the same alias; the smaller one wins.
type AliasOrder func(a, b AliasCandidate) int

func alphabetical(a, b AliasCandidate) int {
	if c := cmp.Compare(a.Key.Asset, b.Key.Asset); c != 0 {
		return c
	}
	return cmp.Compare(a.Key.Index, b.Key.Index)
}

// SingleBandFirst prefers single-band assets over multi-band ones, then
// orders alphabetically by asset key and band index. Multi-band assets
// of different sizes are not ranked by size.
func SingleBandFirst(a, b AliasCandidate) int {
	as, bs := a.BandCount <= 1, b.BandCount <= 1
	if as != bs {
		if as {
			return -1
		}
		return 1
	}
	return alphabetical(a, b)
}

// FewestBandsFirst ranks assets by band count, then alphabetically.
func FewestBandsFirst(a, b AliasCandidate) int {
	if c := cmp.Compare(max(a.BandCount, 1), max(b.BandCount, 1)); c != 0 {
		return c
	}
	return alphabetical(a, b)
}

// Alphabetical ignores band counts.
func Alphabetical(a, b AliasCandidate) int {
	return alphabetical(a, b)
}

// ParseAliasOrder maps a configuration name to an AliasOrder.
func ParseAliasOrder(name string) (AliasOrder, error) {
	switch strings.ToLower(name) {
	case "", "single_band_first":
		return SingleBandFirst, nil
	case "band_count", "fewest_bands_first":
		return FewestBandsFirst, nil
	case "alphabetical":
		return Alphabetical, nil
	}
	return nil, fmt.Errorf("unknown alias order %q", name)
}

// RasterCollectionMetadata is the canonical band set shared by all items of
// one collection.
type RasterCollectionMetadata struct {
	Name       string
	Bands      map[BandKey]RasterBandMetadata
	Aliases    map[string][]BandKey
	BandCounts map[string]int
	HasProj    bool
}

// NewCollectionMetadata builds metadata from band records and alias claims,
// ordering each alias's candidates with order (SingleBandFirst when nil).
func NewCollectionMetadata(name string, bands map[BandKey]RasterBandMetadata, claims map[string][]BandKey, order AliasOrder) *RasterCollectionMetadata {
	if order == nil {
		order = SingleBandFirst
	}
	md := &RasterCollectionMetadata{
		Name:       name,
		Bands:      bands,
		Aliases:    make(map[string][]BandKey, len(claims)),
		BandCounts: make(map[string]int),
	}
	for k := range bands {
		md.BandCounts[k.Asset] = max(md.BandCounts[k.Asset], k.Index)
	}
	for alias, keys := range claims {
		cands := make([]AliasCandidate, 0, len(keys))
		seen := make(map[BandKey]bool, len(keys))
		for _, k := range keys {
			if seen[k] {
				continue
			}
			seen[k] = true
			cands = append(cands, AliasCandidate{Key: k, BandCount: md.BandCounts[k.Asset]})
		}
		slices.SortStableFunc(cands, order)
		ordered := make([]BandKey, len(cands))
		for i, c := range cands {
			ordered[i] = c.Key
		}
		md.Aliases[alias] = ordered
	}
	return md
}

// SingleBand reports whether asset holds exactly one band.
func (md *RasterCollectionMetadata) SingleBand(asset string) bool {
	return md.BandCounts[asset] <= 1
}

// CanonicalName is "asset" for single-band assets and "asset.N" otherwise.
func (md *RasterCollectionMetadata) CanonicalName(k BandKey) string {
	if k.Index == 1 && md.SingleBand(k.Asset) {
		return k.Asset
	}
	return k.String()
}

// Keys returns all band keys ordered by asset then index.
func (md *RasterCollectionMetadata) Keys() []BandKey {
	keys := make([]BandKey, 0, len(md.Bands))
	for k := range md.Bands {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b BandKey) int {
		return alphabetical(AliasCandidate{Key: a}, AliasCandidate{Key: b})
	})
	return keys
}

// CanonicalNames lists every band by canonical name.
func (md *RasterCollectionMetadata) CanonicalNames() []string {
	keys := md.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = md.CanonicalName(k)
	}
	return names
}

// ResolveBand maps a canonical band name or an alias to a band key.
// A bare asset name only names a single-band asset; bands of multi-band
// assets are addressed as "asset.N". Canonical names win over aliases.
func (md *RasterCollectionMetadata) ResolveBand(name string) (BandKey, error) {
	bare := BandKey{Asset: name, Index: 1}
	if _, ok := md.Bands[bare]; ok && md.SingleBand(name) {
		return bare, nil
	}
	if k := ParseBandKey(name); k.Asset != name {
		if _, ok := md.Bands[k]; ok {
			return k, nil
		}
	}
	if cands := md.Aliases[name]; len(cands) > 0 {
		return cands[0], nil
	}
	if n := md.BandCounts[name]; n > 1 {
		return BandKey{}, fmt.Errorf("asset %q of collection %q has %d bands, select one as %q to %q", name, md.Name, n, name+".1", fmt.Sprintf("%s.%d", name, n))
	}
	return BandKey{}, fmt.Errorf("band %q not found in collection %q", name, md.Name)
}

// Band returns the metadata of a resolved band with defaults applied.
func (md *RasterCollectionMetadata) Band(k BandKey) RasterBandMetadata {
	return md.Bands[k].WithDefaults()
}
