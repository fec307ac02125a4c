// Package raster is the pixel I/O layer of a load: the Reader and Driver
// contracts implemented by the driver modules, resampling kernels, and
// the warp of a source window onto an output chunk.
package raster

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/geo"
)

// ErrNotGeoreferenced is returned when neither the item metadata nor the
// file itself provides a grid.
var ErrNotGeoreferenced = errors.New("raster has no georeferencing")

// Info describes an open raster.
type Info struct {
	Width, Height int
	Bands         int
	// GeoBox is the native grid from the file, nil when absent.
	GeoBox   *geo.GeoBox
	Nodata   *float64
	DataType string
	// Overviews lists available decimation factors in ascending order,
	// e.g. [2 4 8].
	Overviews []int
}

// Reader is an open raster resource. Implementations must allow
// concurrent ReadWindow calls.
type Reader interface {
	Info() Info
	// ReadWindow reads one band (1-based) over a window expressed in the
	// pixel space of the given overview factor (1 is full resolution).
	ReadWindow(ctx context.Context, band int, w geo.Window, overview int) (*Plane, error)
	Close() error
}

// Driver opens readers for the URIs it was registered for.
type Driver interface {
	Open(ctx context.Context, uri string, e env.Env) (Reader, error)
}

// Plane is a row-major block of pixel values. NaN marks missing data.
type Plane struct {
	Rows, Cols int
	Data       []float64
}

// NewPlane allocates a plane filled with v.
func NewPlane(rows, cols int, v float64) *Plane {
	p := &Plane{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
	if v != 0 {
		for i := range p.Data {
			p.Data[i] = v
		}
	}
	return p
}

// At returns the value at (row, col), NaN when out of bounds.
func (p *Plane) At(row, col int) float64 {
	if row < 0 || col < 0 || row >= p.Rows || col >= p.Cols {
		return math.NaN()
	}
	return p.Data[row*p.Cols+col]
}

// Valid counts non-NaN pixels.
func (p *Plane) Valid() int {
	n := 0
	for _, v := range p.Data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// MaskNodata replaces pixels equal to nodata with NaN.
func (p *Plane) MaskNodata(nodata *float64) {
	if nodata == nil || math.IsNaN(*nodata) {
		return
	}
	for i, v := range p.Data {
		if v == *nodata {
			p.Data[i] = math.NaN()
		}
	}
}

// CheckWindow validates a window against a level's size.
func CheckWindow(w geo.Window, width, height int) error {
	if w.Empty() || w.Row < 0 || w.Col < 0 || w.Row+w.Rows > height || w.Col+w.Cols > width {
		return fmt.Errorf("window %+v outside raster of %dx%d", w, height, width)
	}
	return nil
}

// LevelSize is the size of an overview level of a width x height raster.
func LevelSize(width, height, factor int) (int, int) {
	if factor <= 1 {
		return width, height
	}
	return (width + factor - 1) / factor, (height + factor - 1) / factor
}
