package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Footprint is the result of reprojecting a polygon. When the faithful
// reprojection is unusable the geometry is replaced by the bounding box
// of the transformed points and Degenerate explains why.
type Footprint struct {
	Geometry   orb.Polygon
	Degenerate string
}

// Densify inserts points so that every edge of r is split into n segments.
func Densify(r orb.Ring, n int) orb.Ring {
	if n <= 1 || len(r) < 2 {
		return r
	}
	out := make(orb.Ring, 0, (len(r)-1)*n+1)
	for i := 0; i < len(r)-1; i++ {
		a, b := r[i], r[i+1]
		for k := 0; k < n; k++ {
			t := float64(k) / float64(n)
			out = append(out, orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t})
		}
	}
	return append(out, r[len(r)-1])
}

// TransformGeometry reprojects any orb geometry point by point.
func TransformGeometry(g orb.Geometry, src, dst CRS) (orb.Geometry, error) {
	t, err := NewTransformer(src, dst)
	if err != nil {
		return nil, err
	}
	if t.Identity() {
		return orb.Clone(g), nil
	}
	return project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		x, y := t.Apply(p[0], p[1])
		return orb.Point{x, y}
	}), nil
}

// ReprojectFootprint reprojects the exterior ring of poly from src to dst
// with densification. Rings that gain non-finite points, wrap across the
// antimeridian, or self-intersect are replaced by their bounding box.
func ReprojectFootprint(poly orb.Polygon, src, dst CRS, densify int) (Footprint, error) {
	if len(poly) == 0 || len(poly[0]) < 4 {
		return Footprint{}, fmt.Errorf("footprint polygon is empty")
	}
	t, err := NewTransformer(src, dst)
	if err != nil {
		return Footprint{}, err
	}
	if t.Identity() {
		ring := append(orb.Ring(nil), poly[0]...)
		return Footprint{Geometry: orb.Polygon{ring}}, nil
	}

	dense := Densify(poly[0], densify)
	out := make(orb.Ring, 0, len(dense))
	var finite []orb.Point
	lost := 0
	for _, p := range dense {
		x, y := t.Apply(p[0], p[1])
		if !finitePoint(x, y) {
			lost++
			continue
		}
		pt := orb.Point{x, y}
		out = append(out, pt)
		finite = append(finite, pt)
	}

	if len(finite) == 0 {
		return Footprint{}, fmt.Errorf("no footprint point is representable in %s", dst)
	}

	reason := ""
	switch {
	case lost > 0:
		reason = fmt.Sprintf("%d of %d points are outside the domain of %s", lost, len(dense), dst)
	case dst.Geographic() && wrapsAntimeridian(out):
		reason = "footprint crosses the antimeridian"
	case selfIntersects(out):
		reason = "reprojected footprint self-intersects"
	case len(out) < 4:
		reason = "reprojected footprint has fewer than three vertices"
	}
	if reason != "" {
		return Footprint{Geometry: boundOf(finite).ToPolygon(), Degenerate: reason}, nil
	}
	return Footprint{Geometry: orb.Polygon{out}}, nil
}

func finitePoint(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}

func boundOf(pts []orb.Point) orb.Bound {
	b := orb.Bound{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b = b.Extend(p)
	}
	return b
}

// BoundOfPoints returns the bounding box of a non-empty point set.
func BoundOfPoints(pts []orb.Point) (orb.Bound, bool) {
	if len(pts) == 0 {
		return orb.Bound{}, false
	}
	return boundOf(pts), true
}

func wrapsAntimeridian(r orb.Ring) bool {
	for i := 1; i < len(r); i++ {
		if math.Abs(r[i][0]-r[i-1][0]) > 180 {
			return true
		}
	}
	return false
}

// selfIntersects checks every pair of non-adjacent edges of a closed ring.
func selfIntersects(r orb.Ring) bool {
	n := len(r) - 1
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := r[i], r[i+1]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(a1, a2, r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// segmentsCross reports a proper crossing; touching endpoints do not count.
func segmentsCross(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
