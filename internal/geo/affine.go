package geo

import (
	"fmt"
	"math"
)

// Affine maps pixel (col, row) to world (x, y):
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// B and D are non-zero for rotated or sheared grids.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity is the do-nothing transform.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// Translation moves points by (x, y).
func Translation(x, y float64) Affine {
	return Affine{A: 1, C: x, E: 1, F: y}
}

// Scale multiplies x and y independently.
func Scale(sx, sy float64) Affine {
	return Affine{A: sx, E: sy}
}

// Rotation rotates counter-clockwise by deg degrees about the origin.
func Rotation(deg float64) Affine {
	s, c := math.Sincos(deg * math.Pi / 180)
	// Snap exact quarter turns so axis-aligned results stay exact.
	if math.Abs(s) < 1e-15 {
		s = 0
	}
	if math.Abs(c) < 1e-15 {
		c = 0
	}
	return Affine{A: c, B: -s, D: s, E: c}
}

// FromCoefficients accepts the six (or nine, row-major 3x3) numbers of a
// STAC proj:transform.
func FromCoefficients(v []float64) (Affine, error) {
	switch len(v) {
	case 6, 9:
	default:
		return Affine{}, fmt.Errorf("transform needs 6 or 9 coefficients, got %d", len(v))
	}
	a := Affine{A: v[0], B: v[1], C: v[2], D: v[3], E: v[4], F: v[5]}
	if a.Det() == 0 {
		return Affine{}, fmt.Errorf("transform %v is singular", v[:6])
	}
	return a, nil
}

// FromGDAL converts GDAL GeoTransform ordering (c, a, b, f, d, e).
func FromGDAL(gt [6]float64) Affine {
	return Affine{A: gt[1], B: gt[2], C: gt[0], D: gt[4], E: gt[5], F: gt[3]}
}

// Coefficients returns (A, B, C, D, E, F).
func (a Affine) Coefficients() [6]float64 {
	return [6]float64{a.A, a.B, a.C, a.D, a.E, a.F}
}

// Apply maps a pixel coordinate to world coordinates.
func (a Affine) Apply(col, row float64) (float64, float64) {
	return a.A*col + a.B*row + a.C, a.D*col + a.E*row + a.F
}

// Mul returns a∘b, the transform that applies b first and then a.
func (a Affine) Mul(b Affine) Affine {
	return Affine{
		A: a.A*b.A + a.B*b.D,
		B: a.A*b.B + a.B*b.E,
		C: a.A*b.C + a.B*b.F + a.C,
		D: a.D*b.A + a.E*b.D,
		E: a.D*b.B + a.E*b.E,
		F: a.D*b.C + a.E*b.F + a.F,
	}
}

// Det is the determinant of the linear part.
func (a Affine) Det() float64 {
	return a.A*a.E - a.B*a.D
}

// Invert returns the world-to-pixel transform.
func (a Affine) Invert() (Affine, error) {
	det := a.Det()
	if det == 0 || math.IsNaN(det) {
		return Affine{}, fmt.Errorf("affine transform is not invertible")
	}
	ia := a.E / det
	ib := -a.B / det
	id := -a.D / det
	ie := a.A / det
	return Affine{
		A: ia, B: ib, C: -(ia*a.C + ib*a.F),
		D: id, E: ie, F: -(id*a.C + ie*a.F),
	}, nil
}

// IsAxisAligned reports whether the transform has no rotation or shear.
func (a Affine) IsAxisAligned() bool {
	return a.B == 0 && a.D == 0
}

// PixelSize returns the lengths of one pixel step along columns and rows.
// For axis-aligned transforms these are A and E with their signs.
func (a Affine) PixelSize() (float64, float64) {
	if a.IsAxisAligned() {
		return a.A, a.E
	}
	return math.Hypot(a.A, a.D), -math.Hypot(a.B, a.E)
}

// AlmostEqual compares coefficients with an absolute tolerance.
func (a Affine) AlmostEqual(b Affine, tol float64) bool {
	ac, bc := a.Coefficients(), b.Coefficients()
	for i := range ac {
		if math.Abs(ac[i]-bc[i]) > tol {
			return false
		}
	}
	return true
}

func (a Affine) String() string {
	return fmt.Sprintf("Affine(%g, %g, %g, %g, %g, %g)", a.A, a.B, a.C, a.D, a.E, a.F)
}
