package geotiff

import (
	"bytes"
	"fmt"
	"image"
	"strconv"

	"golang.org/x/image/tiff"

	"github.com/vk/stacgridgo/internal/geo"
)

// Image is a decoded single-resolution GeoTIFF.
type Image struct {
	Width, Height int
	// Bands holds one row-major plane per sample.
	Bands    [][]float64
	DataType string
	// GeoBox is nil when the file carries no usable georeferencing.
	GeoBox *geo.GeoBox
	Nodata *float64
}

// Decode reads an uncompressed, LZW or Deflate striped/tiled TIFF. Gray,
// palette and RGB(A) images with unsigned 8 or 16 bit samples go through
// golang.org/x/image/tiff; every other sample layout is read block by block.
func Decode(data []byte) (*Image, error) {
	d, err := parseIFD(data)
	if err != nil {
		return nil, err
	}
	dtype, err := dataType(d.first(tagBitsPerSample, 1), d.first(tagSampleFormat, 1))
	if err != nil {
		return nil, err
	}
	samples := int(d.first(tagSamplesPerPixel, 1))

	var (
		bands [][]float64
		w, h  int
	)
	if imageLayout(dtype, samples, d.first(tagPredictor, predictorNone)) {
		img, err := tiff.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s pixels: %w", dtype, err)
		}
		if bands, err = planes(img, samples); err != nil {
			return nil, err
		}
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	} else {
		bands, w, h, err = decodeSamples(data, d, dtype)
		if err != nil {
			return nil, fmt.Errorf("decode %s pixels: %w", dtype, err)
		}
	}
	out := &Image{Width: w, Height: h, Bands: bands, DataType: dtype}

	if s := d.ascii(tagGDALNodata); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GDAL_NODATA %q: %w", s, err)
		}
		out.Nodata = &v
	}
	out.GeoBox, err = georef(d, out.Width, out.Height)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// imageLayout reports whether x/image/tiff can decode the pixels.
func imageLayout(dtype string, samples int, predictor uint64) bool {
	if dtype != "uint8" && dtype != "uint16" {
		return false
	}
	return (samples == 1 || samples == 3 || samples == 4) && predictor != predictorFloat
}

// planes splits a decoded image into per-sample float planes.
func planes(img image.Image, samples int) ([][]float64, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	alloc := func(n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = make([]float64, w*h)
		}
		return out
	}

	switch m := img.(type) {
	case *image.Gray:
		out := alloc(1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[0][y*w+x] = float64(m.Pix[y*m.Stride+x])
			}
		}
		return out, nil
	case *image.Gray16:
		out := alloc(1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*m.Stride + 2*x
				out[0][y*w+x] = float64(uint16(m.Pix[i])<<8 | uint16(m.Pix[i+1]))
			}
		}
		return out, nil
	case *image.Paletted:
		out := alloc(1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[0][y*w+x] = float64(m.Pix[y*m.Stride+x])
			}
		}
		return out, nil
	case *image.RGBA:
		return interleaved8(m.Pix, m.Stride, w, h, min(max(samples, 3), 4), alloc), nil
	case *image.NRGBA:
		return interleaved8(m.Pix, m.Stride, w, h, min(max(samples, 3), 4), alloc), nil
	case *image.RGBA64:
		return interleaved16(m.Pix, m.Stride, w, h, min(max(samples, 3), 4), alloc), nil
	case *image.NRGBA64:
		return interleaved16(m.Pix, m.Stride, w, h, min(max(samples, 3), 4), alloc), nil
	}
	return nil, fmt.Errorf("unsupported pixel layout %T", img)
}

func interleaved8(pix []byte, stride, w, h, n int, alloc func(int) [][]float64) [][]float64 {
	out := alloc(n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for s := 0; s < n; s++ {
				out[s][y*w+x] = float64(pix[y*stride+4*x+s])
			}
		}
	}
	return out
}

func interleaved16(pix []byte, stride, w, h, n int, alloc func(int) [][]float64) [][]float64 {
	out := alloc(n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for s := 0; s < n; s++ {
				i := y*stride + 8*x + 2*s
				out[s][y*w+x] = float64(uint16(pix[i])<<8 | uint16(pix[i+1]))
			}
		}
	}
	return out
}

// georef builds the grid from ModelTransformation, or from a pixel scale
// and a single tie point. Files without an EPSG coded CRS are treated as
// not georeferenced.
func georef(d *ifd, w, h int) (*geo.GeoBox, error) {
	var a geo.Affine
	m := d.floats(tagModelTransformation)
	scale := d.floats(tagModelPixelScale)
	tie := d.floats(tagModelTiepoint)
	switch {
	case len(m) == 16:
		a = geo.Affine{A: m[0], B: m[1], C: m[3], D: m[4], E: m[5], F: m[7]}
	case len(scale) >= 2 && len(tie) >= 6:
		a = geo.Affine{
			A: scale[0], C: tie[3] - tie[0]*scale[0],
			E: -scale[1], F: tie[4] + tie[1]*scale[1],
		}
	default:
		return nil, nil
	}

	keys := d.geoKeys()
	if keys[keyRasterType] == rasterPixelIsPoint {
		a = a.Mul(geo.Translation(-0.5, -0.5))
	}
	code := keys[keyProjectedType]
	if code == 0 {
		code = keys[keyGeographicType]
	}
	if code == 0 || code == userDefined {
		return nil, nil
	}
	gb, err := geo.NewGeoBox(geo.EPSG(int(code)), a, w, h)
	if err != nil {
		return nil, fmt.Errorf("invalid georeferencing: %w", err)
	}
	return &gb, nil
}
