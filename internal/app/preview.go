package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/dataset"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/geotiff"
)

// writePreviews writes one 8-bit GeoTIFF per band and time slice into dir,
// stretched to the valid value range and scaled so the longer edge is at
// most size pixels. Zero is nodata.
func writePreviews(ctx context.Context, dir string, ds *dataset.Dataset, size int) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for _, name := range ds.Bands {
		arr, _ := ds.Band(name)
		for t := range ds.Times {
			if err := ctx.Err(); err != nil {
				return paths, err
			}
			img := stretch(arr, t)
			gb := ds.GeoBox
			w, h := fit(gb.Width, gb.Height, size)
			if w != gb.Width || h != gb.Height {
				dst := image.NewGray(image.Rect(0, 0, w, h))
				draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
				img = dst
				scaled, err := geo.NewGeoBox(gb.CRS, gb.Transform.Mul(geo.Scale(float64(gb.Width)/float64(w), float64(gb.Height)/float64(h))), w, h)
				if err != nil {
					return paths, err
				}
				gb = scaled
			}

			p := filepath.Join(dir, fmt.Sprintf("%s_%03d.tif", safeName(name), t))
			if err := writeGray(p, img, gb); err != nil {
				return paths, fmt.Errorf("write preview %s: %w", p, err)
			}
			paths = append(paths, p)
		}
	}
	logger.Info("🖼️ Previews written.", "dir", dir, "count", len(paths))
	return paths, nil
}

// stretch maps the valid values of one time slice linearly onto 1..255.
func stretch(arr *dataset.Array, t int) *image.Gray {
	vals := arr.Slice(t)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if !arr.IsNodata(v) {
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	img := image.NewGray(image.Rect(0, 0, arr.Width, arr.Height))
	if lo > hi {
		return img
	}
	span := hi - lo
	for i, v := range vals {
		if arr.IsNodata(v) {
			continue
		}
		g := 255.0
		if span > 0 {
			g = 1 + math.Round(254*(v-lo)/span)
		}
		img.Pix[i] = uint8(g)
	}
	return img
}

// fit scales w x h down so neither edge exceeds size.
func fit(w, h, size int) (int, int) {
	if size <= 0 || (w <= size && h <= size) {
		return w, h
	}
	f := float64(size) / float64(max(w, h))
	return max(1, int(math.Round(float64(w)*f))), max(1, int(math.Round(float64(h)*f)))
}

func writeGray(path string, img *image.Gray, gb geo.GeoBox) error {
	b := img.Bounds()
	band := make([]float64, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			band[y*b.Dx()+x] = float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}
	zero := 0.0
	var buf bytes.Buffer
	err := geotiff.Encode(&buf, &geotiff.Image{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Bands:    [][]float64{band},
		DataType: "uint8",
		GeoBox:   &gb,
		Nodata:   &zero,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
