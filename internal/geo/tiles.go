package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Tiles splits a GeoBox into chunks of at most ChunkRows x ChunkCols pixels.
type Tiles struct {
	Box       GeoBox
	ChunkRows int
	ChunkCols int
}

// NewTiles builds a tiling; non-positive chunk sizes mean one chunk per axis.
func NewTiles(g GeoBox, chunkRows, chunkCols int) Tiles {
	if chunkRows <= 0 || chunkRows > g.Height {
		chunkRows = max(g.Height, 1)
	}
	if chunkCols <= 0 || chunkCols > g.Width {
		chunkCols = max(g.Width, 1)
	}
	return Tiles{Box: g, ChunkRows: chunkRows, ChunkCols: chunkCols}
}

// Shape returns the number of chunks along rows and columns.
func (t Tiles) Shape() (int, int) {
	ny := (t.Box.Height + t.ChunkRows - 1) / t.ChunkRows
	nx := (t.Box.Width + t.ChunkCols - 1) / t.ChunkCols
	return ny, nx
}

// Window returns the pixel window of chunk (iy, ix).
func (t Tiles) Window(iy, ix int) Window {
	w := Window{Row: iy * t.ChunkRows, Col: ix * t.ChunkCols, Rows: t.ChunkRows, Cols: t.ChunkCols}
	return w.Intersect(Window{Rows: t.Box.Height, Cols: t.Box.Width})
}

// Tile returns the sub-grid of chunk (iy, ix).
func (t Tiles) Tile(iy, ix int) GeoBox {
	return t.Box.Slice(t.Window(iy, ix))
}

// Range returns the inclusive-exclusive chunk index ranges overlapped by a
// bound expressed in pixel coordinates of the tiled grid.
func (t Tiles) Range(pix orb.Bound) (y0, y1, x0, x1 int, ok bool) {
	ny, nx := t.Shape()
	r0 := math.Max(pix.Min[1], 0)
	r1 := math.Min(pix.Max[1], float64(t.Box.Height))
	c0 := math.Max(pix.Min[0], 0)
	c1 := math.Min(pix.Max[0], float64(t.Box.Width))
	if r1 <= r0 || c1 <= c0 {
		return 0, 0, 0, 0, false
	}
	y0 = int(math.Floor(r0)) / t.ChunkRows
	y1 = min((int(math.Ceil(r1))+t.ChunkRows-1)/t.ChunkRows, ny)
	x0 = int(math.Floor(c0)) / t.ChunkCols
	x1 = min((int(math.Ceil(c1))+t.ChunkCols-1)/t.ChunkCols, nx)
	return y0, y1, x0, x1, y1 > y0 && x1 > x0
}
