package geotiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// TIFF and GeoTIFF tag numbers.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGDALNodata          = 42113
)

// Geo keys.
const (
	keyModelType      = 1024
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyProjectedType  = 3072

	rasterPixelIsPoint = 2
	userDefined        = 32767
)

// Field types.
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeFloat  = 11
	typeDouble = 12
)

var typeSizes = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8, 16: 8,
}

// ErrNotTIFF is returned for data without a TIFF header.
var ErrNotTIFF = errors.New("not a TIFF file")

type entry struct {
	tag, typ uint16
	count    uint32
	data     []byte
}

type ifd struct {
	bo      binary.ByteOrder
	entries map[uint16]entry
}

func parseIFD(data []byte) (*ifd, error) {
	if len(data) < 8 {
		return nil, ErrNotTIFF
	}
	var bo binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}
	switch bo.Uint16(data[2:4]) {
	case 42:
	case 43:
		return nil, errors.New("BigTIFF is not supported")
	default:
		return nil, ErrNotTIFF
	}

	off := int(bo.Uint32(data[4:8]))
	if off+2 > len(data) {
		return nil, fmt.Errorf("IFD offset %d beyond end of file", off)
	}
	n := int(bo.Uint16(data[off:]))
	if off+2+12*n > len(data) {
		return nil, fmt.Errorf("truncated IFD with %d entries", n)
	}
	out := &ifd{bo: bo, entries: make(map[uint16]entry, n)}
	for i := 0; i < n; i++ {
		p := data[off+2+12*i:]
		e := entry{tag: bo.Uint16(p), typ: bo.Uint16(p[2:]), count: bo.Uint32(p[4:])}
		size, ok := typeSizes[e.typ]
		if !ok {
			continue
		}
		total := size * int(e.count)
		if total <= 4 {
			e.data = p[8 : 8+total]
		} else {
			vo := int(bo.Uint32(p[8:]))
			if vo < 0 || vo+total > len(data) {
				return nil, fmt.Errorf("tag %d points outside the file", e.tag)
			}
			e.data = data[vo : vo+total]
		}
		out.entries[e.tag] = e
	}
	return out, nil
}

// uints decodes integer fields.
func (d *ifd) uints(tag uint16) []uint64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case typeByte:
			out = append(out, uint64(e.data[i]))
		case typeShort:
			out = append(out, uint64(d.bo.Uint16(e.data[2*i:])))
		case typeLong:
			out = append(out, uint64(d.bo.Uint32(e.data[4*i:])))
		default:
			return nil
		}
	}
	return out
}

func (d *ifd) first(tag uint16, def uint64) uint64 {
	if v := d.uints(tag); len(v) > 0 {
		return v[0]
	}
	return def
}

// floats decodes DOUBLE and FLOAT fields.
func (d *ifd) floats(tag uint16) []float64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	out := make([]float64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case typeDouble:
			out = append(out, math.Float64frombits(d.bo.Uint64(e.data[8*i:])))
		case typeFloat:
			out = append(out, float64(math.Float32frombits(d.bo.Uint32(e.data[4*i:]))))
		default:
			return nil
		}
	}
	return out
}

func (d *ifd) ascii(tag uint16) string {
	e, ok := d.entries[tag]
	if !ok || e.typ != typeASCII {
		return ""
	}
	return strings.TrimRight(string(e.data), "\x00 ")
}

// geoKeys reads the inline SHORT values of the geo key directory.
func (d *ifd) geoKeys() map[uint64]uint64 {
	dir := d.uints(tagGeoKeyDirectory)
	if len(dir) < 4 {
		return nil
	}
	n := int(dir[3])
	keys := make(map[uint64]uint64, n)
	for i := 0; i < n && 4+4*i+3 < len(dir); i++ {
		k := dir[4+4*i:]
		if k[1] == 0 {
			keys[k[0]] = k[3]
		}
	}
	return keys
}

// dataType maps BitsPerSample and SampleFormat to a data type name.
func dataType(bits, format uint64) (string, error) {
	switch format {
	case 1:
		switch bits {
		case 8:
			return "uint8", nil
		case 16:
			return "uint16", nil
		case 32:
			return "uint32", nil
		}
	case 2:
		switch bits {
		case 8:
			return "int8", nil
		case 16:
			return "int16", nil
		case 32:
			return "int32", nil
		}
	case 3:
		switch bits {
		case 32:
			return "float32", nil
		case 64:
			return "float64", nil
		}
	}
	return "", fmt.Errorf("unsupported sample layout: %d bits, format %d", bits, format)
}
