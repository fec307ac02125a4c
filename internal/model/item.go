package model

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/vk/stacgridgo/internal/geo"
)

// RasterSource locates one band's pixel plane for one item.
type RasterSource struct {
	URI        string
	Band       int
	Subdataset string
	GeoBox     *geo.GeoBox
	Meta       RasterBandMetadata
}

// ResourceKey identifies the file (and sub-dataset) the band lives in, so
// bands sharing a file share one open handle.
func (s *RasterSource) ResourceKey() string {
	if s.Subdataset == "" {
		return s.URI
	}
	return s.URI + "#" + s.Subdataset
}

// ParsedItem is the normalised form of one STAC Item.
type ParsedItem struct {
	ID            string
	Index         int
	Href          string
	Collection    *RasterCollectionMetadata
	Bands         map[BandKey]*RasterSource
	Geometry      orb.Geometry
	Datetime      *time.Time
	StartDatetime *time.Time
	EndDatetime   *time.Time
	Properties    map[string]any
}

// NominalDatetime is datetime, else start_datetime, else end_datetime.
func (p *ParsedItem) NominalDatetime() (time.Time, error) {
	switch {
	case p.Datetime != nil:
		return *p.Datetime, nil
	case p.StartDatetime != nil:
		return *p.StartDatetime, nil
	case p.EndDatetime != nil:
		return *p.EndDatetime, nil
	}
	return time.Time{}, fmt.Errorf("item %q has no datetime", p.ID)
}

// Source returns the raster source for a band name, resolved through the
// collection's aliases. Items that lack the asset return false.
func (p *ParsedItem) Source(name string) (*RasterSource, bool) {
	if p.Collection == nil {
		return nil, false
	}
	k, err := p.Collection.ResolveBand(name)
	if err != nil {
		return nil, false
	}
	src, ok := p.Bands[k]
	return src, ok
}

// Centroid is the lon/lat centre of the footprint.
func (p *ParsedItem) Centroid() (orb.Point, bool) {
	if p.Geometry == nil {
		return orb.Point{}, false
	}
	c, area := planar.CentroidArea(p.Geometry)
	if area == 0 || math.IsNaN(c[0]) {
		c = p.Geometry.Bound().Center()
	}
	return c, true
}

// SolarDate returns the calendar date of the item's timestamp shifted by
// the local solar offset at longitude lon, whole hours truncated toward zero.
func (p *ParsedItem) SolarDate(lon float64) (time.Time, error) {
	t, err := p.NominalDatetime()
	if err != nil {
		return time.Time{}, err
	}
	return SolarDay(t, lon), nil
}

// SolarDay truncates t, shifted by trunc(lon/15) hours, to midnight UTC.
func SolarDay(t time.Time, lon float64) time.Time {
	offset := time.Duration(int(lon/15)) * time.Hour
	local := t.UTC().Add(offset)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
