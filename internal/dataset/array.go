package dataset

import (
	"fmt"
	"math"
	"sync"

	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/model"
	"github.com/vk/stacgridgo/internal/raster"
)

// Array is one band of a dataset, laid out (time, y, x) row-major.
type Array struct {
	Name     string
	DataType string
	// Nodata is the fill value of pixels no source covered. NaN for float
	// outputs unless a fill value was configured.
	Nodata float64
	Unit   string

	Times, Height, Width int
	Data                 []float64

	tiles geo.Tiles
	ny    int
	nx    int

	mu   sync.Mutex
	done []bool
}

// NewArray allocates an array of times slices over the tiling's grid,
// filled with nodata and with every chunk pending.
func NewArray(name, dtype, unit string, nodata float64, times int, tiles geo.Tiles) *Array {
	h, w := tiles.Box.Height, tiles.Box.Width
	ny, nx := tiles.Shape()
	a := &Array{
		Name: name, DataType: dtype, Nodata: nodata, Unit: unit,
		Times: times, Height: h, Width: w,
		Data:  make([]float64, times*h*w),
		tiles: tiles, ny: ny, nx: nx,
		done:  make([]bool, times*ny*nx),
	}
	if nodata != 0 {
		for i := range a.Data {
			a.Data[i] = nodata
		}
	}
	return a
}

func (a *Array) chunkIndex(t, iy, ix int) (int, error) {
	if t < 0 || t >= a.Times || iy < 0 || iy >= a.ny || ix < 0 || ix >= a.nx {
		return 0, fmt.Errorf("chunk (%d, %d, %d) out of range for %s", t, iy, ix, a.Name)
	}
	return (t*a.ny+iy)*a.nx + ix, nil
}

// ChunkShape returns the number of chunks along time, y and x.
func (a *Array) ChunkShape() (int, int, int) {
	return a.Times, a.ny, a.nx
}

// ChunkDone reports whether chunk (t, iy, ix) has been written.
func (a *Array) ChunkDone(t, iy, ix int) bool {
	i, err := a.chunkIndex(t, iy, ix)
	if err != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done[i]
}

// MarkEmpty marks a chunk no source contributes to as complete; it keeps
// the nodata fill.
func (a *Array) MarkEmpty(t, iy, ix int) error {
	i, err := a.chunkIndex(t, iy, ix)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.done[i] = true
	return nil
}

// WriteChunk stores a composited chunk. NaN becomes the nodata value and
// other values are cast to the array's data type. Each chunk can be
// written once.
func (a *Array) WriteChunk(t, iy, ix int, p *raster.Plane) error {
	i, err := a.chunkIndex(t, iy, ix)
	if err != nil {
		return err
	}
	w := a.tiles.Window(iy, ix)
	if p.Rows != w.Rows || p.Cols != w.Cols {
		return fmt.Errorf("chunk (%d, %d, %d) of %s is %dx%d, want %dx%d", t, iy, ix, a.Name, p.Rows, p.Cols, w.Rows, w.Cols)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done[i] {
		return fmt.Errorf("chunk (%d, %d, %d) of %s already written", t, iy, ix, a.Name)
	}
	base := t * a.Height * a.Width
	for r := 0; r < w.Rows; r++ {
		row := base + (w.Row+r)*a.Width + w.Col
		for c := 0; c < w.Cols; c++ {
			v := p.Data[r*w.Cols+c]
			if math.IsNaN(v) {
				v = a.Nodata
			} else {
				v = model.Cast(a.DataType, v)
			}
			a.Data[row+c] = v
		}
	}
	a.done[i] = true
	return nil
}

// Complete reports whether every chunk has been written.
func (a *Array) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range a.done {
		if !d {
			return false
		}
	}
	return true
}

// Pending counts chunks not yet written.
func (a *Array) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, d := range a.done {
		if !d {
			n++
		}
	}
	return n
}

// IsNodata reports whether v is this array's nodata value.
func (a *Array) IsNodata(v float64) bool {
	if math.IsNaN(a.Nodata) {
		return math.IsNaN(v)
	}
	return v == a.Nodata
}

// At returns the value at (t, row, col).
func (a *Array) At(t, row, col int) float64 {
	return a.Data[(t*a.Height+row)*a.Width+col]
}

// Slice returns the plane of one time index. The slice aliases Data.
func (a *Array) Slice(t int) []float64 {
	n := a.Height * a.Width
	return a.Data[t*n : (t+1)*n]
}

// Valid counts pixels of time slice t that hold data.
func (a *Array) Valid(t int) int {
	n := 0
	for _, v := range a.Slice(t) {
		if !a.IsNodata(v) {
			n++
		}
	}
	return n
}
