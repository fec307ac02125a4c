package parser

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/stac"
)

// gridFallbacks are tried in order; the first one that yields a grid wins.
var gridFallbacks = []struct {
	name string
	fn   func(p stac.Projection, rows, cols int) (geo.GeoBox, error)
}{
	{"transform", gridFromTransform},
	{"bbox", gridFromBBox},
	{"gcps", gridFromGCPs},
}

// assetGrid derives the native grid of an asset. Asset-level proj fields
// win; missing ones are taken from the item. When proj carries a shape but
// nothing else usable, the item footprint (lon/lat) is stretched over it.
// A nil grid with a nil error means the grid is unknown until read time.
func assetGrid(a *stac.Asset, itemProj stac.Projection, footprint orb.Bound, hasFootprint bool) (*geo.GeoBox, string, error) {
	p := a.Proj.Merge(itemProj)
	if len(p.Shape) != 2 {
		return nil, "", nil
	}
	rows, cols := p.Shape[0], p.Shape[1]
	if rows <= 0 || cols <= 0 {
		return nil, "", fmt.Errorf("proj:shape must be positive, got %v", p.Shape)
	}

	var errs []error
	for _, f := range gridFallbacks {
		gb, err := f.fn(p, rows, cols)
		if err == nil {
			return &gb, f.name, nil
		}
		if err != errNotApplicable {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
		}
	}
	if hasFootprint && !footprint.IsEmpty() {
		gb, err := gridFromBound(footprint, geo.WGS84, rows, cols)
		if err == nil {
			return &gb, "footprint", nil
		}
		errs = append(errs, fmt.Errorf("footprint: %w", err))
	}
	if len(errs) > 0 {
		return nil, "", errs[0]
	}
	return nil, "", nil
}

var errNotApplicable = fmt.Errorf("not applicable")

func projCRS(p stac.Projection) (geo.CRS, error) {
	if !p.HasCRS() {
		return geo.CRS{}, errNotApplicable
	}
	return p.CRS()
}

func gridFromTransform(p stac.Projection, rows, cols int) (geo.GeoBox, error) {
	if len(p.Transform) == 0 {
		return geo.GeoBox{}, errNotApplicable
	}
	crs, err := projCRS(p)
	if err != nil {
		return geo.GeoBox{}, err
	}
	t, err := geo.FromCoefficients(p.Transform)
	if err != nil {
		return geo.GeoBox{}, err
	}
	return geo.NewGeoBox(crs, t, cols, rows)
}

func gridFromBBox(p stac.Projection, rows, cols int) (geo.GeoBox, error) {
	if len(p.BBox) == 0 {
		return geo.GeoBox{}, errNotApplicable
	}
	if len(p.BBox) != 4 {
		return geo.GeoBox{}, fmt.Errorf("proj:bbox must have 4 values, got %d", len(p.BBox))
	}
	crs, err := projCRS(p)
	if err != nil {
		return geo.GeoBox{}, err
	}
	b := orb.Bound{Min: orb.Point{p.BBox[0], p.BBox[1]}, Max: orb.Point{p.BBox[2], p.BBox[3]}}
	return gridFromBound(b, crs, rows, cols)
}

// gridFromBound spreads a north-up grid of the given shape over b.
func gridFromBound(b orb.Bound, crs geo.CRS, rows, cols int) (geo.GeoBox, error) {
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	if w <= 0 || h <= 0 {
		return geo.GeoBox{}, fmt.Errorf("bounds %v have no area", b)
	}
	t := geo.Affine{A: w / float64(cols), C: b.Min[0], E: -h / float64(rows), F: b.Max[1]}
	return geo.NewGeoBox(crs, t, cols, rows)
}

// gridFromGCPs fits an affine transform to the ground control points by
// least squares. GCPs without a CRS are taken to be lon/lat.
func gridFromGCPs(p stac.Projection, rows, cols int) (geo.GeoBox, error) {
	if len(p.GCPs) == 0 {
		return geo.GeoBox{}, errNotApplicable
	}
	crs := geo.WGS84
	if p.HasCRS() {
		var err error
		if crs, err = p.CRS(); err != nil {
			return geo.GeoBox{}, err
		}
	}
	t, err := FitAffine(p.GCPs)
	if err != nil {
		return geo.GeoBox{}, err
	}
	return geo.NewGeoBox(crs, t, cols, rows)
}

// FitAffine solves x = a*col + b*row + c and y = d*col + e*row + f over
// three or more control points.
func FitAffine(gcps []stac.GCP) (geo.Affine, error) {
	if len(gcps) < 3 {
		return geo.Affine{}, fmt.Errorf("need at least 3 ground control points, got %d", len(gcps))
	}
	// Normal equations M^T M v = M^T z with rows (col, row, 1).
	var m [3][3]float64
	var zx, zy [3]float64
	for _, g := range gcps {
		r := [3]float64{g.Col, g.Row, 1}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				m[i][j] += r[i] * r[j]
			}
			zx[i] += r[i] * g.X
			zy[i] += r[i] * g.Y
		}
	}
	vx, err := solve3(m, zx)
	if err != nil {
		return geo.Affine{}, err
	}
	vy, err := solve3(m, zy)
	if err != nil {
		return geo.Affine{}, err
	}
	return geo.Affine{A: vx[0], B: vx[1], C: vx[2], D: vy[0], E: vy[1], F: vy[2]}, nil
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// solve3 applies Cramer's rule.
func solve3(m [3][3]float64, z [3]float64) ([3]float64, error) {
	d := det3(m)
	if d == 0 || math.Abs(d) <= 1e-12*math.Abs(m[0][0]*m[1][1]*m[2][2]) {
		return [3]float64{}, fmt.Errorf("ground control points are collinear")
	}
	var out [3]float64
	for k := 0; k < 3; k++ {
		mk := m
		for i := 0; i < 3; i++ {
			mk[i][k] = z[i]
		}
		out[k] = det3(mk) / d
	}
	return out, nil
}
