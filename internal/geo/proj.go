package geo

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/twpayne/go-proj/v10"
)

// definition renders c in a form PROJ accepts: an authority code, WKT or
// PROJJSON.
func (c CRS) definition() (string, error) {
	switch {
	case c.EPSG != 0:
		return "EPSG:" + strconv.Itoa(c.EPSG), nil
	case c.WKT != "":
		return c.WKT, nil
	default:
		return "", fmt.Errorf("CRS is not set")
	}
}

// checkCRS asks PROJ whether it can build c.
func checkCRS(pc *proj.Context, c CRS) error {
	def, err := c.definition()
	if err != nil {
		return err
	}
	pj, err := pc.New(def)
	if err != nil {
		return fmt.Errorf("unsupported CRS %s: %w", c, err)
	}
	pj.Destroy()
	return nil
}

// Transformer reprojects points from one CRS to another. A PROJ context is
// not safe for concurrent use, so each transformer owns one and serialises
// calls on it.
type Transformer struct {
	src, dst CRS
	identity bool

	mu sync.Mutex
	pj *proj.PJ
}

// NewTransformer builds a point transformer. Identical CRSs always work,
// even when PROJ does not know the CRS itself.
func NewTransformer(src, dst CRS) (*Transformer, error) {
	if src.Equal(dst) {
		return &Transformer{src: src, dst: dst, identity: true}, nil
	}
	pc := proj.NewContext()
	if err := checkCRS(pc, src); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if err := checkCRS(pc, dst); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	from, _ := src.definition()
	to, _ := dst.definition()
	pj, err := pc.NewCRSToCRS(from, to, nil)
	if err != nil {
		return nil, fmt.Errorf("no transformation from %s to %s: %w", src, dst, err)
	}
	// Authority axis order puts latitude first for EPSG:4326.
	norm, err := pj.NormalizeForVisualization()
	pj.Destroy()
	if err != nil {
		return nil, fmt.Errorf("normalise axis order %s to %s: %w", src, dst, err)
	}
	return &Transformer{src: src, dst: dst, pj: norm}, nil
}

// Identity reports whether the transformer leaves points unchanged.
func (t *Transformer) Identity() bool { return t.identity }

// Apply reprojects one point. Points outside the valid domain of either
// CRS come back as NaN.
func (t *Transformer) Apply(x, y float64) (float64, float64) {
	if t.identity {
		return x, y
	}
	t.mu.Lock()
	out, err := t.pj.Forward(proj.NewCoord(x, y, 0, 0))
	t.mu.Unlock()
	if err != nil || !finitePoint(out.X(), out.Y()) {
		return math.NaN(), math.NaN()
	}
	return out.X(), out.Y()
}

// Reproject is a one-shot convenience around NewTransformer.
func Reproject(x, y float64, src, dst CRS) (float64, float64, error) {
	t, err := NewTransformer(src, dst)
	if err != nil {
		return 0, 0, err
	}
	px, py := t.Apply(x, y)
	return px, py, nil
}
