// Package gridplan computes the single output pixel grid that every loaded
// band is resampled onto.
package gridplan

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/paulmach/orb"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/errs"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/model"
)

// densify is the number of segments each footprint edge is split into
// before reprojection.
const densify = 16

// Gridded is anything that already has an output grid, such as a
// previously loaded dataset.
type Gridded interface {
	Grid() geo.GeoBox
}

// Params holds the optional user inputs. Zero values mean "not given".
type Params struct {
	GeoBox *geo.GeoBox
	Like   Gridded

	CRS        geo.CRS
	Resolution *geo.Resolution
	Align      *orb.Point
	Anchor     geo.Anchor
	// Rotation in degrees, counter-clockwise. Non-zero yields a rotated grid.
	Rotation float64

	BBox        []float64
	Lon, Lat    []float64
	X, Y        []float64
	Geometry    orb.Geometry
	GeometryCRS geo.CRS

	// Bands restricts which bands drive the inferred CRS and resolution.
	Bands []string
}

// Result is the planned grid plus the items whose footprints had to be
// approximated by their bounding box.
type Result struct {
	GeoBox     geo.GeoBox
	Degenerate []*errs.GeometryDegeneracyError
}

func (p Params) given() []string {
	var out []string
	add := func(name string, set bool) {
		if set {
			out = append(out, name)
		}
	}
	add("geobox", p.GeoBox != nil)
	add("like", p.Like != nil)
	add("crs", !p.CRS.IsZero())
	add("resolution", p.Resolution != nil)
	add("align", p.Align != nil)
	add("rotation", p.Rotation != 0)
	add("bbox", len(p.BBox) > 0)
	add("lon", len(p.Lon) > 0)
	add("lat", len(p.Lat) > 0)
	add("x", len(p.X) > 0)
	add("y", len(p.Y) > 0)
	add("geometry", p.Geometry != nil)
	return out
}

func checkExtra(given []string, primary string, allowed ...string) error {
	var extra []string
	for _, g := range given {
		if g != primary && !slices.Contains(allowed, g) {
			extra = append(extra, g)
		}
	}
	if len(extra) > 0 {
		return errs.Configuration(primary, "too many arguments: %s", strings.Join(extra, ","))
	}
	return nil
}

func pair(name string, v []float64) (float64, float64, error) {
	if len(v) != 2 {
		return 0, 0, errs.Configuration(name, "expected 2 values, got %d", len(v))
	}
	return min(v[0], v[1]), max(v[0], v[1]), nil
}

// query returns the user's area of interest and the CRS it is expressed in.
func (p Params) query(given []string) (orb.Polygon, geo.CRS, error) {
	common := []string{"crs", "align", "resolution", "rotation"}
	if (len(p.X) > 0) != (len(p.Y) > 0) {
		return nil, geo.CRS{}, errs.Configuration("x,y", "need to supply both x and y")
	}
	if (len(p.Lon) > 0) != (len(p.Lat) > 0) {
		return nil, geo.CRS{}, errs.Configuration("lon,lat", "need to supply both lon and lat")
	}
	switch {
	case p.Geometry != nil:
		if err := checkExtra(given, "geometry", common...); err != nil {
			return nil, geo.CRS{}, err
		}
		crs := p.GeometryCRS
		if crs.IsZero() {
			crs = geo.WGS84
		}
		return polygonOf(p.Geometry), crs, nil
	case len(p.BBox) > 0:
		if err := checkExtra(given, "bbox", common...); err != nil {
			return nil, geo.CRS{}, err
		}
		if len(p.BBox) != 4 {
			return nil, geo.CRS{}, errs.Configuration("bbox", "expected 4 values, got %d", len(p.BBox))
		}
		b := orb.Bound{Min: orb.Point{p.BBox[0], p.BBox[1]}, Max: orb.Point{p.BBox[2], p.BBox[3]}}
		return b.ToPolygon(), geo.WGS84, nil
	case len(p.Lon) > 0:
		if err := checkExtra(given, "lon", append(common, "lat")...); err != nil {
			return nil, geo.CRS{}, err
		}
		x0, x1, err := pair("lon", p.Lon)
		if err != nil {
			return nil, geo.CRS{}, err
		}
		y0, y1, err := pair("lat", p.Lat)
		if err != nil {
			return nil, geo.CRS{}, err
		}
		return orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x1, y1}}.ToPolygon(), geo.WGS84, nil
	case len(p.X) > 0:
		if p.CRS.IsZero() {
			return nil, geo.CRS{}, errs.Configuration("crs", "need to supply crs when using x and y")
		}
		if err := checkExtra(given, "x", append(common, "y")...); err != nil {
			return nil, geo.CRS{}, err
		}
		x0, x1, err := pair("x", p.X)
		if err != nil {
			return nil, geo.CRS{}, err
		}
		y0, y1, err := pair("y", p.Y)
		if err != nil {
			return nil, geo.CRS{}, err
		}
		return orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x1, y1}}.ToPolygon(), p.CRS, nil
	}
	return nil, geo.CRS{}, nil
}

// Plan computes the output grid. An explicit geobox or like wins outright.
// Otherwise the CRS is the given one, else the most common native CRS,
// else the CRS of the query geometry; the resolution is the given one,
// else the native pixel size of the most common native grid. The area
// covered is the query geometry when given, else the union of item
// footprints.
func Plan(ctx context.Context, items []*model.ParsedItem, p Params) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	given := p.given()

	if p.GeoBox != nil {
		if err := checkExtra(given, "geobox"); err != nil {
			return nil, err
		}
		return &Result{GeoBox: *p.GeoBox}, nil
	}
	if p.Like != nil {
		if err := checkExtra(given, "like"); err != nil {
			return nil, err
		}
		gb := p.Like.Grid()
		if gb.IsZero() {
			return nil, errs.Configuration("like", "no grid on like input")
		}
		return &Result{GeoBox: gb}, nil
	}

	queryPoly, queryCRS, err := p.query(given)
	if err != nil {
		return nil, err
	}

	crs, res := p.CRS, p.Resolution
	if crs.IsZero() || res == nil {
		native, ok := dominantGrid(items, p.Bands)
		if crs.IsZero() {
			switch {
			case ok:
				crs = native.CRS
			case !queryCRS.IsZero():
				crs = queryCRS
			default:
				return nil, errs.Configuration("crs", "no CRS given and none can be inferred from the items")
			}
		}
		if res == nil {
			if !ok {
				return nil, errs.Configuration("resolution", "no resolution given and none can be inferred from the items")
			}
			r, err := convertResolution(native, crs)
			if err != nil {
				return nil, &errs.ConfigurationError{Field: "resolution", Reason: "cannot convert native resolution to " + crs.String(), Err: err}
			}
			res = &r
		}
	}
	if !crs.Supported() {
		return nil, errs.Configuration("crs", "output CRS %s is not supported", crs)
	}

	out := &Result{}
	var pts []orb.Point
	if queryPoly != nil {
		fp, err := geo.ReprojectFootprint(queryPoly, queryCRS, crs, densify)
		if err != nil {
			return nil, &errs.ConfigurationError{Field: "geometry", Reason: "cannot reproject query geometry", Err: err}
		}
		if fp.Degenerate != "" {
			logger.Warn("Query geometry is degenerate in the output CRS, using its bounding box.", "reason", fp.Degenerate)
		}
		pts = append(pts, fp.Geometry[0]...)
	} else {
		for _, it := range items {
			ipts, degen := itemPoints(it, crs)
			if degen != nil {
				logger.Warn("Item footprint is degenerate in the output CRS, using its bounding box.",
					"item_id", it.ID, "reason", degen.Reason)
				out.Degenerate = append(out.Degenerate, degen)
			}
			pts = append(pts, ipts...)
		}
	}
	if len(pts) == 0 {
		return nil, errs.Configuration("bounds", "no item footprint or query geometry to cover")
	}

	if p.Rotation != 0 {
		out.GeoBox, err = geo.FromRotatedPoints(pts, crs, *res, p.Rotation, p.Anchor)
	} else {
		var align orb.Point
		if p.Align != nil {
			align = *p.Align
		}
		b, _ := geo.BoundOfPoints(pts)
		out.GeoBox, err = geo.FromBounds(b, crs, *res, p.Anchor, align)
	}
	if err != nil {
		return nil, &errs.ConfigurationError{Field: "geobox", Reason: "cannot build output grid", Err: err}
	}
	logger.Debug("Output grid planned.", "geobox", out.GeoBox.String(), "degenerate_count", len(out.Degenerate))
	return out, nil
}

// polygonOf turns any geometry into a polygon, using the bounding box for
// anything that is not a single polygon.
func polygonOf(g orb.Geometry) orb.Polygon {
	if poly, ok := g.(orb.Polygon); ok && len(poly) > 0 && len(poly[0]) >= 4 {
		return poly
	}
	return g.Bound().ToPolygon()
}

// itemPoints returns the outline of the item in crs.
func itemPoints(it *model.ParsedItem, crs geo.CRS) ([]orb.Point, *errs.GeometryDegeneracyError) {
	var polys []orb.Polygon
	src := geo.WGS84
	switch g := it.Geometry.(type) {
	case nil:
		gb := firstGrid(it, nil)
		if gb == nil {
			return nil, nil
		}
		polys, src = []orb.Polygon{gb.Extent()}, gb.CRS
	case orb.MultiPolygon:
		polys = g
	default:
		polys = []orb.Polygon{polygonOf(g)}
	}

	var pts []orb.Point
	var degen *errs.GeometryDegeneracyError
	for _, poly := range polys {
		if len(poly) == 0 || len(poly[0]) < 4 {
			continue
		}
		fp, err := geo.ReprojectFootprint(poly, src, crs, densify)
		if err != nil {
			degen = &errs.GeometryDegeneracyError{ItemID: it.ID, Reason: err.Error()}
			continue
		}
		if fp.Degenerate != "" {
			degen = &errs.GeometryDegeneracyError{ItemID: it.ID, Reason: fp.Degenerate}
		}
		pts = append(pts, fp.Geometry[0]...)
	}
	return pts, degen
}

// firstGrid returns the native grid of the first requested band the item
// has, or of its first band when bands is empty.
func firstGrid(it *model.ParsedItem, bands []string) *geo.GeoBox {
	if it.Collection == nil {
		return nil
	}
	if len(bands) > 0 {
		for _, name := range bands {
			if src, ok := it.Source(name); ok && src.GeoBox != nil {
				return src.GeoBox
			}
		}
		return nil
	}
	for _, k := range it.Collection.Keys() {
		if src, ok := it.Bands[k]; ok && src.GeoBox != nil {
			return src.GeoBox
		}
	}
	return nil
}

type gridKey struct {
	crs string
	res geo.Resolution
}

// dominantGrid returns a representative native grid of the most common
// (CRS, resolution) pair. Ties go to the pair seen first.
func dominantGrid(items []*model.ParsedItem, bands []string) (geo.GeoBox, bool) {
	counts := make(map[gridKey]int)
	first := make(map[gridKey]geo.GeoBox)
	var order []gridKey
	for _, it := range items {
		gb := firstGrid(it, bands)
		if gb == nil {
			continue
		}
		k := gridKey{crs: gb.CRS.String(), res: gb.Resolution()}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			first[k] = *gb
		}
		counts[k]++
	}
	if len(order) == 0 {
		return geo.GeoBox{}, false
	}
	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return first[best], true
}

// convertResolution expresses the pixel size of gb in dst by measuring one
// pixel step at the grid centre.
func convertResolution(gb geo.GeoBox, dst geo.CRS) (geo.Resolution, error) {
	res := gb.Resolution()
	if gb.CRS.Equal(dst) {
		return res, nil
	}
	t, err := geo.NewTransformer(gb.CRS, dst)
	if err != nil {
		return geo.Resolution{}, err
	}
	c := gb.Center()
	cx, cy := t.Apply(c[0], c[1])
	px, py := t.Apply(c[0]+math.Abs(res.X), c[1])
	qx, qy := t.Apply(c[0], c[1]+math.Abs(res.Y))
	dx := math.Hypot(px-cx, py-cy)
	dy := math.Hypot(qx-cx, qy-cy)
	if dx == 0 || dy == 0 || math.IsNaN(dx) || math.IsNaN(dy) {
		return geo.Resolution{}, errs.Configuration("resolution", "native pixel size degenerates in %s", dst)
	}
	// Square pixels, sized by the smaller side.
	return geo.Square(min(dx, dy)), nil
}
