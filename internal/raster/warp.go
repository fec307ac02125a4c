package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/stacgridgo/internal/geo"
)

// WarpOptions controls how a source band lands on a destination grid.
type WarpOptions struct {
	Band       int
	Resampling Resampling
	// SrcNodata is masked to NaN before resampling.
	SrcNodata    *float64
	UseOverviews bool
}

// Warp resamples one band of rd, whose native grid is src, onto dst. The
// result has dst's shape with NaN wherever the source has no data. A nil
// plane means the source does not cover any destination pixel centre.
func Warp(ctx context.Context, rd Reader, src, dst geo.GeoBox, opt WarpOptions) (*Plane, error) {
	tr, err := geo.NewTransformer(dst.CRS, src.CRS)
	if err != nil {
		return nil, fmt.Errorf("reproject %s to %s: %w", dst.CRS, src.CRS, err)
	}
	inv, err := src.Transform.Invert()
	if err != nil {
		return nil, err
	}
	toSrc := func(col, row float64) (float64, float64) {
		wx, wy := dst.Transform.Apply(col, row)
		sx, sy := tr.Apply(wx, wy)
		return inv.Apply(sx, sy)
	}

	n := dst.Width * dst.Height
	xs := make([]float64, n)
	ys := make([]float64, n)
	inside := false
	for r := 0; r < dst.Height; r++ {
		for c := 0; c < dst.Width; c++ {
			x, y := toSrc(float64(c)+0.5, float64(r)+0.5)
			xs[r*dst.Width+c], ys[r*dst.Width+c] = x, y
			if x >= 0 && y >= 0 && x < float64(src.Width) && y < float64(src.Height) {
				inside = true
			}
		}
	}
	if !inside {
		return nil, nil
	}

	rx, ry := sourceScale(toSrc, dst)
	info := rd.Info()
	factor := 1
	if opt.UseOverviews {
		factor = PickOverview(info.Overviews, min(rx, ry))
	}
	f := float64(factor)
	rx, ry = rx/f, ry/f
	lw, lh := LevelSize(src.Width, src.Height, factor)

	var halo float64
	switch k, ok := opt.Resampling.kernel(); {
	case ok:
		halo = k.radius * max(1, rx, ry)
	case opt.Resampling.aggregating():
		halo = max(1, rx, ry) / 2
	}
	win, ok := sourceWindow(xs, ys, f, halo, lw, lh)
	if !ok {
		return nil, nil
	}
	band := opt.Band
	if band <= 0 {
		band = 1
	}
	plane, err := rd.ReadWindow(ctx, band, win, factor)
	if err != nil {
		return nil, err
	}
	plane.MaskNodata(opt.SrcNodata)

	out := NewPlane(dst.Height, dst.Width, math.NaN())
	s := sampler{plane: plane, method: opt.Resampling, rx: max(1, rx), ry: max(1, ry)}
	for r := 0; r < dst.Height; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for c := 0; c < dst.Width; c++ {
			i := r*dst.Width + c
			x, y := xs[i], ys[i]
			if !(x >= 0 && y >= 0 && x < float64(src.Width) && y < float64(src.Height)) {
				continue
			}
			out.Data[i] = s.sample(x/f-float64(win.Col), y/f-float64(win.Row))
		}
	}
	return out, nil
}

// sourceScale estimates how many source pixels one destination pixel
// spans along each destination axis, measured at the grid centre.
func sourceScale(toSrc func(c, r float64) (float64, float64), dst geo.GeoBox) (float64, float64) {
	c, r := float64(dst.Width/2)+0.5, float64(dst.Height/2)+0.5
	x0, y0 := toSrc(c, r)
	x1, y1 := toSrc(c+1, r)
	x2, y2 := toSrc(c, r+1)
	rx, ry := math.Hypot(x1-x0, y1-y0), math.Hypot(x2-x0, y2-y0)
	if math.IsNaN(rx) || rx == 0 {
		rx = 1
	}
	if math.IsNaN(ry) || ry == 0 {
		ry = 1
	}
	return rx, ry
}

// PickOverview returns the coarsest overview factor not exceeding the
// scale ratio, or 1.
func PickOverview(overviews []int, ratio float64) int {
	best := 1
	for _, o := range overviews {
		if o > best && float64(o) <= ratio {
			best = o
		}
	}
	return best
}

func sourceWindow(xs, ys []float64, f, halo float64, lw, lh int) (geo.Window, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range xs {
		x, y := xs[i]/f, ys[i]/f
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	if math.IsInf(minX, 1) {
		return geo.Window{}, false
	}
	c0 := max(int(math.Floor(minX-halo))-1, 0)
	r0 := max(int(math.Floor(minY-halo))-1, 0)
	c1 := min(int(math.Ceil(maxX+halo))+1, lw)
	r1 := min(int(math.Ceil(maxY+halo))+1, lh)
	w := geo.Window{Row: r0, Col: c0, Rows: r1 - r0, Cols: c1 - c0}
	return w, !w.Empty()
}

// sampler evaluates one method at fractional pixel positions of a plane,
// where pixel (i, j) covers [j, j+1) x [i, i+1).
type sampler struct {
	plane  *Plane
	method Resampling
	rx, ry float64
	buf    []float64
}

func (s *sampler) sample(x, y float64) float64 {
	if k, ok := s.method.kernel(); ok {
		return s.convolve(k, x, y)
	}
	if s.method.aggregating() {
		return s.aggregate(x, y)
	}
	return s.plane.At(int(math.Floor(y)), int(math.Floor(x)))
}

func (s *sampler) convolve(k kernel, x, y float64) float64 {
	u, v := x-0.5, y-0.5
	// Downsampling widens the kernel; upsampling keeps it at unit scale.
	sx, sy := s.rx, s.ry
	c0, c1 := int(math.Floor(u-k.radius*sx))+1, int(math.Floor(u+k.radius*sx))
	r0, r1 := int(math.Floor(v-k.radius*sy))+1, int(math.Floor(v+k.radius*sy))

	var sum, wsum float64
	for r := r0; r <= r1; r++ {
		wy := k.weight((v - float64(r)) / sy)
		if wy == 0 {
			continue
		}
		for c := c0; c <= c1; c++ {
			val := s.plane.At(r, c)
			if math.IsNaN(val) {
				continue
			}
			w := wy * k.weight((u-float64(c))/sx)
			sum += w * val
			wsum += w
		}
	}
	if wsum <= 1e-12 {
		return s.plane.At(int(math.Floor(y)), int(math.Floor(x)))
	}
	return sum / wsum
}

func (s *sampler) aggregate(x, y float64) float64 {
	hx, hy := s.rx/2, s.ry/2
	c0, c1 := int(math.Ceil(x-hx-0.5)), int(math.Ceil(x+hx-0.5))
	r0, r1 := int(math.Ceil(y-hy-0.5)), int(math.Ceil(y+hy-0.5))
	s.buf = s.buf[:0]
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			if v := s.plane.At(r, c); !math.IsNaN(v) {
				s.buf = append(s.buf, v)
			}
		}
	}
	return s.method.reduce(s.buf)
}

// Composite writes the valid pixels of src into dst, which must have the
// same shape. With keepFirst, pixels dst already holds are not replaced.
func Composite(dst, src *Plane, keepFirst bool) {
	for i, v := range src.Data {
		if math.IsNaN(v) {
			continue
		}
		if keepFirst && !math.IsNaN(dst.Data[i]) {
			continue
		}
		dst.Data[i] = v
	}
}
