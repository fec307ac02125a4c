package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Resolution is the pixel size in CRS units. Y is negative for north-up grids.
type Resolution struct {
	X, Y float64
}

// Square returns a north-up resolution of size r.
func Square(r float64) Resolution {
	return Resolution{X: math.Abs(r), Y: -math.Abs(r)}
}

func (r Resolution) String() string {
	return fmt.Sprintf("(%g, %g)", r.X, r.Y)
}

// Window is a rectangular pixel region, in rows and columns.
type Window struct {
	Row, Col   int
	Rows, Cols int
}

// Empty reports whether the window has no pixels.
func (w Window) Empty() bool {
	return w.Rows <= 0 || w.Cols <= 0
}

// Intersect clips w to o.
func (w Window) Intersect(o Window) Window {
	r0 := max(w.Row, o.Row)
	c0 := max(w.Col, o.Col)
	r1 := min(w.Row+w.Rows, o.Row+o.Rows)
	c1 := min(w.Col+w.Cols, o.Col+o.Cols)
	if r1 <= r0 || c1 <= c0 {
		return Window{Row: r0, Col: c0}
	}
	return Window{Row: r0, Col: c0, Rows: r1 - r0, Cols: c1 - c0}
}

// GeoBox is a pixel grid: CRS, affine transform, and size.
type GeoBox struct {
	CRS       CRS
	Transform Affine
	Width     int
	Height    int
}

// NewGeoBox validates and builds a GeoBox.
func NewGeoBox(crs CRS, transform Affine, width, height int) (GeoBox, error) {
	if width <= 0 || height <= 0 {
		return GeoBox{}, fmt.Errorf("geobox shape must be positive, got %dx%d", height, width)
	}
	if transform.Det() == 0 {
		return GeoBox{}, fmt.Errorf("geobox transform is singular")
	}
	return GeoBox{CRS: crs, Transform: transform, Width: width, Height: height}, nil
}

// IsZero reports whether the geobox is unset.
func (g GeoBox) IsZero() bool {
	return g.Width == 0 && g.Height == 0
}

// Shape returns (rows, cols).
func (g GeoBox) Shape() (int, int) {
	return g.Height, g.Width
}

// Resolution returns the pixel size along columns and rows.
func (g GeoBox) Resolution() Resolution {
	x, y := g.Transform.PixelSize()
	return Resolution{X: x, Y: y}
}

// PixelToWorld maps a (fractional) pixel coordinate to CRS coordinates.
func (g GeoBox) PixelToWorld(col, row float64) (float64, float64) {
	return g.Transform.Apply(col, row)
}

// Corners returns the four outer pixel-edge corners, clockwise from the
// top-left, in CRS coordinates.
func (g GeoBox) Corners() [4]orb.Point {
	w, h := float64(g.Width), float64(g.Height)
	var out [4]orb.Point
	for i, p := range [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}} {
		x, y := g.Transform.Apply(p[0], p[1])
		out[i] = orb.Point{x, y}
	}
	return out
}

// Extent is the grid outline as a closed polygon in the grid CRS.
func (g GeoBox) Extent() orb.Polygon {
	c := g.Corners()
	ring := orb.Ring{c[0], c[3], c[2], c[1], c[0]}
	if ring.Orientation() != orb.CCW {
		ring.Reverse()
	}
	return orb.Polygon{ring}
}

// Boundary returns the outline with n points per side, suitable for
// reprojection into curved target CRSs.
func (g GeoBox) Boundary(n int) orb.Ring {
	if n < 1 {
		n = 1
	}
	w, h := float64(g.Width), float64(g.Height)
	edges := [4][4]float64{{0, 0, w, 0}, {w, 0, w, h}, {w, h, 0, h}, {0, h, 0, 0}}
	ring := make(orb.Ring, 0, 4*n+1)
	for _, e := range edges {
		for i := 0; i < n; i++ {
			t := float64(i) / float64(n)
			x, y := g.Transform.Apply(e[0]+(e[2]-e[0])*t, e[1]+(e[3]-e[1])*t)
			ring = append(ring, orb.Point{x, y})
		}
	}
	return append(ring, ring[0])
}

// Bound is the axis-aligned bounding box of the grid in its CRS.
func (g GeoBox) Bound() orb.Bound {
	c := g.Corners()
	b := orb.Bound{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		b = b.Extend(p)
	}
	return b
}

// Center is the world coordinate of the grid centre.
func (g GeoBox) Center() orb.Point {
	x, y := g.Transform.Apply(float64(g.Width)/2, float64(g.Height)/2)
	return orb.Point{x, y}
}

// GeographicCenter returns the grid centre in lon/lat.
func (g GeoBox) GeographicCenter() (orb.Point, error) {
	c := g.Center()
	lon, lat, err := Reproject(c[0], c[1], g.CRS, WGS84)
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{lon, lat}, nil
}

// Slice returns the sub-grid covering the window. The window is clipped
// to the grid.
func (g GeoBox) Slice(w Window) GeoBox {
	w = w.Intersect(Window{Rows: g.Height, Cols: g.Width})
	t := g.Transform.Mul(Translation(float64(w.Col), float64(w.Row)))
	return GeoBox{CRS: g.CRS, Transform: t, Width: w.Cols, Height: w.Rows}
}

// Equal compares grids with a tolerance on the transform.
func (g GeoBox) Equal(o GeoBox, tol float64) bool {
	return g.Width == o.Width && g.Height == o.Height && g.CRS.Equal(o.CRS) &&
		g.Transform.AlmostEqual(o.Transform, tol)
}

func (g GeoBox) String() string {
	return fmt.Sprintf("GeoBox(%dx%d, %s, %s)", g.Height, g.Width, g.CRS, g.Transform)
}

// Anchor selects how grid edges snap to multiples of the resolution.
type Anchor int

const (
	// AnchorEdge snaps pixel edges to multiples of the resolution.
	AnchorEdge Anchor = iota
	// AnchorCenter snaps pixel centres to multiples of the resolution.
	AnchorCenter
	// AnchorNone uses the bounds exactly (tight).
	AnchorNone
)

// ParseAnchor maps "edge", "center" and "none"/"tight" to an Anchor.
func ParseAnchor(s string) (Anchor, error) {
	switch s {
	case "", "edge", "default":
		return AnchorEdge, nil
	case "center", "centre":
		return AnchorCenter, nil
	case "none", "tight", "floating":
		return AnchorNone, nil
	}
	return AnchorEdge, fmt.Errorf("unknown anchor %q", s)
}

// snapEps absorbs floating point noise when snapping to the pixel lattice.
const snapEps = 1e-6

func snapRange(lo, hi, res, offset float64, anchor Anchor) (float64, int) {
	if anchor == AnchorNone {
		n := int(math.Ceil((hi-lo)/res - snapEps))
		return lo, max(n, 1)
	}
	if anchor == AnchorCenter {
		offset += res / 2
	}
	start := math.Floor((lo-offset)/res+snapEps)*res + offset
	end := math.Ceil((hi-offset)/res-snapEps)*res + offset
	n := int(math.Round((end - start) / res))
	return start, max(n, 1)
}

// FromBounds builds a north-up grid covering b at resolution res. align
// shifts the snapping lattice, in CRS units.
func FromBounds(b orb.Bound, crs CRS, res Resolution, anchor Anchor, align orb.Point) (GeoBox, error) {
	rx, ry := math.Abs(res.X), math.Abs(res.Y)
	if rx == 0 || ry == 0 || math.IsNaN(rx) || math.IsNaN(ry) {
		return GeoBox{}, fmt.Errorf("resolution %s must be non-zero", res)
	}
	if b.IsEmpty() {
		return GeoBox{}, fmt.Errorf("bounds are empty")
	}
	x0, nx := snapRange(b.Min[0], b.Max[0], rx, align[0], anchor)
	if res.Y < 0 {
		// Snap the lattice upside down so the top edge is the origin.
		negTop, ny := snapRange(-b.Max[1], -b.Min[1], ry, -align[1], anchor)
		return NewGeoBox(crs, Affine{A: rx, C: x0, E: -ry, F: -negTop}, nx, ny)
	}
	y0, ny := snapRange(b.Min[1], b.Max[1], ry, align[1], anchor)
	return NewGeoBox(crs, Affine{A: rx, C: x0, E: ry, F: y0}, nx, ny)
}

// FromRotatedPoints builds a grid rotated by deg degrees (counter-clockwise)
// whose pixel lattice fully contains pts.
func FromRotatedPoints(pts []orb.Point, crs CRS, res Resolution, deg float64, anchor Anchor) (GeoBox, error) {
	if len(pts) == 0 {
		return GeoBox{}, fmt.Errorf("no points to cover")
	}
	rot := Rotation(deg)
	inv, err := rot.Invert()
	if err != nil {
		return GeoBox{}, err
	}
	var b orb.Bound
	for i, p := range pts {
		x, y := inv.Apply(p[0], p[1])
		if i == 0 {
			b = orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x, y}}
			continue
		}
		b = b.Extend(orb.Point{x, y})
	}
	local, err := FromBounds(b, crs, res, anchor, orb.Point{})
	if err != nil {
		return GeoBox{}, err
	}
	local.Transform = rot.Mul(local.Transform)
	return local, nil
}

// PixelBound maps CRS points into this grid's pixel space and returns
// their bounding box, skipping non-finite points.
func (g GeoBox) PixelBound(pts []orb.Point) (orb.Bound, bool) {
	inv, err := g.Transform.Invert()
	if err != nil {
		return orb.Bound{}, false
	}
	var b orb.Bound
	found := false
	for _, p := range pts {
		c, r := inv.Apply(p[0], p[1])
		if math.IsNaN(c) || math.IsNaN(r) || math.IsInf(c, 0) || math.IsInf(r, 0) {
			continue
		}
		if !found {
			b = orb.Bound{Min: orb.Point{c, r}, Max: orb.Point{c, r}}
			found = true
			continue
		}
		b = b.Extend(orb.Point{c, r})
	}
	return b, found
}
