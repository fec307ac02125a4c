package raster

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Resampling is a pixel resampling method.
type Resampling string

// Supported methods.
const (
	Nearest     Resampling = "nearest"
	Bilinear    Resampling = "bilinear"
	Cubic       Resampling = "cubic"
	CubicSpline Resampling = "cubic_spline"
	Lanczos     Resampling = "lanczos"
	Average     Resampling = "average"
	Mode        Resampling = "mode"
	Gauss       Resampling = "gauss"
	Min         Resampling = "min"
	Max         Resampling = "max"
	Med         Resampling = "med"
	Q1          Resampling = "q1"
	Q3          Resampling = "q3"
	Sum         Resampling = "sum"
	RMS         Resampling = "rms"
)

var resamplingAliases = map[string]Resampling{
	"cubicspline":  CubicSpline,
	"cubic-spline": CubicSpline,
	"median":       Med,
	"linear":       Bilinear,
	"avg":          Average,
	"mean":         Average,
}

// Methods lists every supported method.
var Methods = []Resampling{Nearest, Bilinear, Cubic, CubicSpline, Lanczos, Average, Mode, Gauss, Min, Max, Med, Q1, Q3, Sum, RMS}

// ParseResampling accepts method names case-insensitively, with a few
// common aliases. Empty means nearest.
func ParseResampling(s string) (Resampling, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Nearest, nil
	}
	if r, ok := resamplingAliases[s]; ok {
		return r, nil
	}
	if slices.Contains(Methods, Resampling(s)) {
		return Resampling(s), nil
	}
	return "", fmt.Errorf("unknown resampling method %q", s)
}

// kernel is a separable interpolation filter.
type kernel struct {
	radius float64
	weight func(x float64) float64
}

func (r Resampling) kernel() (kernel, bool) {
	switch r {
	case Bilinear:
		return kernel{1, func(x float64) float64 { return max(0, 1-math.Abs(x)) }}, true
	case Cubic:
		return kernel{2, keys}, true
	case CubicSpline:
		return kernel{2, bspline}, true
	case Lanczos:
		return kernel{3, lanczos3}, true
	case Gauss:
		return kernel{1.5, gauss}, true
	}
	return kernel{}, false
}

// aggregating reports whether a method reduces every source pixel falling
// inside the output pixel.
func (r Resampling) aggregating() bool {
	switch r {
	case Average, Mode, Min, Max, Med, Q1, Q3, Sum, RMS:
		return true
	}
	return false
}

// keys is the Catmull-Rom cubic convolution kernel (a = -0.5).
func keys(x float64) float64 {
	const a = -0.5
	x = math.Abs(x)
	switch {
	case x < 1:
		return (a+2)*x*x*x - (a+3)*x*x + 1
	case x < 2:
		return a*x*x*x - 5*a*x*x + 8*a*x - 4*a
	}
	return 0
}

func bspline(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x < 1:
		return (3*x*x*x - 6*x*x + 4) / 6
	case x < 2:
		d := 2 - x
		return d * d * d / 6
	}
	return 0
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	x *= math.Pi
	return math.Sin(x) / x
}

func lanczos3(x float64) float64 {
	if math.Abs(x) >= 3 {
		return 0
	}
	return sinc(x) * sinc(x/3)
}

func gauss(x float64) float64 {
	const sigma = 0.5
	return math.Exp(-x * x / (2 * sigma * sigma))
}

// reduce folds the valid samples of one output pixel.
func (r Resampling) reduce(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	switch r {
	case Sum:
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s
	case RMS:
		s := 0.0
		for _, v := range vals {
			s += v * v
		}
		return math.Sqrt(s / float64(len(vals)))
	case Min:
		return slices.Min(vals)
	case Max:
		return slices.Max(vals)
	case Med:
		return quantile(vals, 0.5)
	case Q1:
		return quantile(vals, 0.25)
	case Q3:
		return quantile(vals, 0.75)
	case Mode:
		return mode(vals)
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// quantile picks the sorted sample at the nearest lower rank, so results
// are always actual source values.
func quantile(vals []float64, q float64) float64 {
	s := slices.Clone(vals)
	slices.Sort(s)
	return s[int(math.Floor(q*float64(len(s)-1)))]
}

// mode returns the most frequent value; ties go to the smallest.
func mode(vals []float64) float64 {
	counts := make(map[float64]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best, bestN := math.Inf(1), 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
