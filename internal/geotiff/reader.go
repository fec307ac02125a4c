package geotiff

import (
	"fmt"

	"github.com/vk/stacgridgo/internal/raster"
)

// NewReader wraps a decoded image in an in-memory raster reader with
// averaged overviews at the given factors.
func NewReader(img *Image, overviews ...int) (*raster.MemReader, error) {
	r, err := raster.NewMemReaderInfo(raster.Info{
		Width:    img.Width,
		Height:   img.Height,
		GeoBox:   img.GeoBox,
		Nodata:   img.Nodata,
		DataType: img.DataType,
	}, img.Bands, overviews...)
	if err != nil {
		return nil, fmt.Errorf("failed to build reader: %w", err)
	}
	return r, nil
}

// DefaultOverviews returns power-of-two factors down to a level no smaller
// than minSize pixels on its short side.
func DefaultOverviews(width, height, minSize int) []int {
	var out []int
	for f := 2; min(width, height)/f >= minSize; f *= 2 {
		out = append(out, f)
	}
	return out
}
