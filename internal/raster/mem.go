package raster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync/atomic"

	"github.com/vk/stacgridgo/internal/geo"
)

// ErrClosed is returned by readers used after Close.
var ErrClosed = errors.New("reader is closed")

// MemReader is a Reader over in-memory bands.
type MemReader struct {
	info   Info
	levels map[int][][]float64
	closed atomic.Bool
	reads  atomic.Int64
}

var _ Reader = (*MemReader)(nil)

// NewMemReader builds a reader over bands laid out row-major on gb, with
// averaged overviews for each factor given.
func NewMemReader(gb geo.GeoBox, bands [][]float64, nodata *float64, dtype string, overviews ...int) (*MemReader, error) {
	box := gb
	return NewMemReaderInfo(Info{
		Width: gb.Width, Height: gb.Height, Bands: len(bands),
		GeoBox: &box, Nodata: nodata, DataType: dtype,
	}, bands, overviews...)
}

// NewMemReaderInfo builds a reader from decoded file contents. info.GeoBox
// may be nil for files without georeferencing; info.Bands and
// info.Overviews are derived from the arguments.
func NewMemReaderInfo(info Info, bands [][]float64, overviews ...int) (*MemReader, error) {
	if len(bands) == 0 {
		return nil, errors.New("at least one band is required")
	}
	for i, b := range bands {
		if len(b) != info.Width*info.Height {
			return nil, fmt.Errorf("band %d has %d pixels, want %d", i+1, len(b), info.Width*info.Height)
		}
	}
	ov := slices.Clone(overviews)
	slices.Sort(ov)
	ov = slices.Compact(ov)
	info.Bands = len(bands)
	info.Overviews = ov

	m := &MemReader{info: info, levels: map[int][][]float64{1: bands}}
	for _, f := range ov {
		if f <= 1 {
			return nil, fmt.Errorf("invalid overview factor %d", f)
		}
		lvl := make([][]float64, len(bands))
		for i, b := range bands {
			lvl[i] = decimate(b, info.Width, info.Height, f, info.Nodata)
		}
		m.levels[f] = lvl
	}
	return m, nil
}

// decimate averages f x f blocks, ignoring nodata.
func decimate(b []float64, w, h, f int, nodata *float64) []float64 {
	lw, lh := LevelSize(w, h, f)
	out := make([]float64, lw*lh)
	for r := 0; r < lh; r++ {
		for c := 0; c < lw; c++ {
			sum, n := 0.0, 0
			for y := r * f; y < min((r+1)*f, h); y++ {
				for x := c * f; x < min((c+1)*f, w); x++ {
					v := b[y*w+x]
					if math.IsNaN(v) || (nodata != nil && v == *nodata) {
						continue
					}
					sum += v
					n++
				}
			}
			switch {
			case n > 0:
				out[r*lw+c] = sum / float64(n)
			case nodata != nil:
				out[r*lw+c] = *nodata
			default:
				out[r*lw+c] = math.NaN()
			}
		}
	}
	return out
}

// Info implements Reader.
func (m *MemReader) Info() Info { return m.info }

// ReadWindow implements Reader.
func (m *MemReader) ReadWindow(ctx context.Context, band int, w geo.Window, overview int) (*Plane, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if overview < 1 {
		overview = 1
	}
	lvl, ok := m.levels[overview]
	if !ok {
		return nil, fmt.Errorf("no overview with factor %d", overview)
	}
	if band < 1 || band > len(lvl) {
		return nil, fmt.Errorf("band %d out of range 1..%d", band, len(lvl))
	}
	lw, lh := LevelSize(m.info.Width, m.info.Height, overview)
	if err := CheckWindow(w, lw, lh); err != nil {
		return nil, err
	}
	m.reads.Add(1)

	src := lvl[band-1]
	p := &Plane{Rows: w.Rows, Cols: w.Cols, Data: make([]float64, w.Rows*w.Cols)}
	for r := 0; r < w.Rows; r++ {
		copy(p.Data[r*w.Cols:(r+1)*w.Cols], src[(w.Row+r)*lw+w.Col:(w.Row+r)*lw+w.Col+w.Cols])
	}
	return p, nil
}

// Reads is the number of successful ReadWindow calls.
func (m *MemReader) Reads() int64 { return m.reads.Load() }

// Close implements Reader.
func (m *MemReader) Close() error {
	m.closed.Store(true)
	return nil
}
