package geotiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// sampleLayouts maps data types to BitsPerSample and SampleFormat.
var sampleLayouts = map[string][2]uint16{
	"uint8": {8, 1}, "int8": {8, 2},
	"uint16": {16, 1}, "int16": {16, 2},
	"uint32": {32, 1}, "int32": {32, 2},
	"float32": {32, 3}, "float64": {64, 3},
}

// Encode writes img as a single-strip, uncompressed little-endian GeoTIFF
// with one or three bands. Integer values are rounded and clamped to the
// data type; NaN is written as Nodata when set, otherwise 0 for integers.
func Encode(w io.Writer, img *Image) error {
	layout, ok := sampleLayouts[img.DataType]
	if !ok {
		return fmt.Errorf("cannot encode data type %q", img.DataType)
	}
	spp := len(img.Bands)
	if spp != 1 && spp != 3 {
		return fmt.Errorf("cannot encode %d bands, want 1 or 3", spp)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return errors.New("image is empty")
	}
	for i, b := range img.Bands {
		if len(b) != img.Width*img.Height {
			return fmt.Errorf("band %d has %d pixels, want %d", i+1, len(b), img.Width*img.Height)
		}
	}

	pixels := encodePixels(img)

	photometric := uint16(1)
	if spp == 3 {
		photometric = 2
	}
	bps := make([]uint16, spp)
	formats := make([]uint16, spp)
	for i := range bps {
		bps[i], formats[i] = layout[0], layout[1]
	}
	entries := []entry{
		longEntry(tagImageWidth, uint32(img.Width)),
		longEntry(tagImageLength, uint32(img.Height)),
		shortEntry(tagBitsPerSample, bps...),
		shortEntry(tagCompression, compressionNone),
		shortEntry(tagPhotometric, photometric),
		longEntry(tagStripOffsets, 0),
		shortEntry(tagSamplesPerPixel, uint16(spp)),
		longEntry(tagRowsPerStrip, uint32(img.Height)),
		longEntry(tagStripByteCounts, uint32(len(pixels))),
		shortEntry(tagPlanarConfiguration, 1),
	}
	if layout[1] != 1 {
		entries = append(entries, shortEntry(tagSampleFormat, formats...))
	}
	if img.GeoBox != nil {
		entries = append(entries, geoEntries(img)...)
	}
	if img.Nodata != nil {
		s := strconv.FormatFloat(*img.Nodata, 'g', -1, 64) + "\x00"
		entries = append(entries, entry{tag: tagGDALNodata, typ: typeASCII, count: uint32(len(s)), data: []byte(s)})
	}

	_, err := w.Write(assemble(entries, tagStripOffsets, [][]byte{pixels}))
	return err
}

// assemble lays out a little-endian TIFF: header, IFD, out-of-line values,
// then the pixel blocks. The entry tagged offsetsTag must list one LONG
// per block and is filled in with the block positions.
func assemble(entries []entry, offsetsTag uint16, blocks [][]byte) []byte {
	le := binary.LittleEndian
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	padded := func(n int) int { return n + n%2 }
	dataOff := 8 + 2 + 12*len(entries) + 4
	pos := dataOff
	for _, e := range entries {
		if len(e.data) > 4 {
			pos += padded(len(e.data))
		}
	}
	for i, e := range entries {
		if e.tag != offsetsTag {
			continue
		}
		offs := make([]byte, 0, 4*len(blocks))
		at := pos
		for _, b := range blocks {
			offs = le.AppendUint32(offs, uint32(at))
			at += len(b)
		}
		entries[i].data = offs
		entries[i].count = uint32(len(blocks))
	}

	var extra bytes.Buffer
	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			offsets[i] = uint32(dataOff + extra.Len())
			extra.Write(e.data)
			if extra.Len()%2 == 1 {
				extra.WriteByte(0)
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	_ = binary.Write(&buf, le, uint16(42))
	_ = binary.Write(&buf, le, uint32(8))
	_ = binary.Write(&buf, le, uint16(len(entries)))
	for i, e := range entries {
		_ = binary.Write(&buf, le, e.tag)
		_ = binary.Write(&buf, le, e.typ)
		_ = binary.Write(&buf, le, e.count)
		var field [4]byte
		if len(e.data) > 4 {
			le.PutUint32(field[:], offsets[i])
		} else {
			copy(field[:], e.data)
		}
		buf.Write(field[:])
	}
	_ = binary.Write(&buf, le, uint32(0))
	buf.Write(extra.Bytes())
	for _, b := range blocks {
		buf.Write(b)
	}
	return buf.Bytes()
}

func shortEntry(tag uint16, v ...uint16) entry {
	b := make([]byte, 0, 2*len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint16(b, x)
	}
	return entry{tag: tag, typ: typeShort, count: uint32(len(v)), data: b}
}

func longEntry(tag uint16, v uint32) entry {
	return entry{tag: tag, typ: typeLong, count: 1, data: binary.LittleEndian.AppendUint32(nil, v)}
}

func doubleEntry(tag uint16, v ...float64) entry {
	b := make([]byte, 0, 8*len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(x))
	}
	return entry{tag: tag, typ: typeDouble, count: uint32(len(v)), data: b}
}

func geoEntries(img *Image) []entry {
	gb := img.GeoBox
	a := gb.Transform
	var out []entry
	if a.IsAxisAligned() && a.A > 0 && a.E < 0 {
		out = append(out,
			doubleEntry(tagModelPixelScale, a.A, -a.E, 0),
			doubleEntry(tagModelTiepoint, 0, 0, 0, a.C, a.F, 0),
		)
	} else {
		out = append(out, doubleEntry(tagModelTransformation,
			a.A, a.B, 0, a.C,
			a.D, a.E, 0, a.F,
			0, 0, 0, 0,
			0, 0, 0, 1,
		))
	}

	modelType, crsKey := uint16(1), uint16(keyProjectedType)
	if gb.CRS.Geographic() {
		modelType, crsKey = 2, keyGeographicType
	}
	code := uint16(userDefined)
	if gb.CRS.EPSG > 0 && gb.CRS.EPSG < math.MaxUint16 {
		code = uint16(gb.CRS.EPSG)
	}
	out = append(out, shortEntry(tagGeoKeyDirectory,
		1, 1, 0, 3,
		keyModelType, 0, 1, modelType,
		keyRasterType, 0, 1, 1,
		crsKey, 0, 1, code,
	))
	return out
}

func encodePixels(img *Image) []byte {
	n := img.Width * img.Height
	spp := len(img.Bands)
	size := int(sampleLayouts[img.DataType][0]) / 8
	lo, hi, integer := typeRange(img.DataType)
	le := binary.LittleEndian
	out := make([]byte, 0, n*spp*size)
	for i := 0; i < n; i++ {
		for s := 0; s < spp; s++ {
			v := img.Bands[s][i]
			if math.IsNaN(v) && (integer || img.Nodata != nil) {
				v = 0
				if img.Nodata != nil {
					v = *img.Nodata
				}
			}
			if integer {
				v = math.Min(math.Max(math.Round(v), lo), hi)
			}
			switch img.DataType {
			case "uint8":
				out = append(out, byte(v))
			case "int8":
				out = append(out, byte(int8(v)))
			case "uint16":
				out = le.AppendUint16(out, uint16(v))
			case "int16":
				out = le.AppendUint16(out, uint16(int16(v)))
			case "uint32":
				out = le.AppendUint32(out, uint32(v))
			case "int32":
				out = le.AppendUint32(out, uint32(int32(v)))
			case "float32":
				out = le.AppendUint32(out, math.Float32bits(float32(v)))
			case "float64":
				out = le.AppendUint64(out, math.Float64bits(v))
			}
		}
	}
	return out
}

// typeRange is the representable range of an integer data type.
func typeRange(dtype string) (lo, hi float64, integer bool) {
	switch dtype {
	case "uint8":
		return 0, math.MaxUint8, true
	case "int8":
		return math.MinInt8, math.MaxInt8, true
	case "uint16":
		return 0, math.MaxUint16, true
	case "int16":
		return math.MinInt16, math.MaxInt16, true
	case "uint32":
		return 0, math.MaxUint32, true
	case "int32":
		return math.MinInt32, math.MaxInt32, true
	}
	return 0, 0, false
}
