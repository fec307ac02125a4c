package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/image/tiff/lzw"
)

// Tags of tiled layouts and compression parameters.
const (
	tagPredictor      = 317
	tagTileWidth      = 322
	tagTileLength     = 323
	tagTileOffsets    = 324
	tagTileByteCounts = 325
)

const (
	compressionNone         = 1
	compressionLZW          = 5
	compressionDeflate      = 8
	compressionAdobeDeflate = 32946

	predictorNone       = 1
	predictorHorizontal = 2
	predictorFloat      = 3
)

// blockLayout is where and how the pixel blocks of an image are stored.
// Strips are blocks spanning the full width.
type blockLayout struct {
	width, height  int
	samples        int
	bytesPerSample int
	planar         bool
	blockW, blockH int
	tiled          bool
	offsets        []uint64
	counts         []uint64
	compression    uint64
	predictor      uint64
}

func readLayout(d *ifd) (*blockLayout, error) {
	l := &blockLayout{
		width:       int(d.first(tagImageWidth, 0)),
		height:      int(d.first(tagImageLength, 0)),
		samples:     int(d.first(tagSamplesPerPixel, 1)),
		planar:      d.first(tagPlanarConfiguration, 1) == 2,
		compression: d.first(tagCompression, compressionNone),
		predictor:   d.first(tagPredictor, predictorNone),
	}
	if l.width <= 0 || l.height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", l.width, l.height)
	}
	bits := d.first(tagBitsPerSample, 1)
	if bits%8 != 0 {
		return nil, fmt.Errorf("unsupported %d bits per sample", bits)
	}
	l.bytesPerSample = int(bits / 8)

	if _, ok := d.entries[tagTileWidth]; ok {
		l.tiled = true
		l.blockW = int(d.first(tagTileWidth, 0))
		l.blockH = int(d.first(tagTileLength, 0))
		l.offsets = d.uints(tagTileOffsets)
		l.counts = d.uints(tagTileByteCounts)
	} else {
		l.blockW = l.width
		l.blockH = min(int(d.first(tagRowsPerStrip, uint64(l.height))), l.height)
		l.offsets = d.uints(tagStripOffsets)
		l.counts = d.uints(tagStripByteCounts)
	}
	if l.blockW <= 0 || l.blockH <= 0 {
		return nil, fmt.Errorf("invalid block size %dx%d", l.blockW, l.blockH)
	}
	want := l.blocksAcross() * l.blocksDown() * l.planes()
	if len(l.offsets) < want || len(l.counts) < want {
		return nil, fmt.Errorf("image needs %d blocks, file lists %d offsets and %d byte counts", want, len(l.offsets), len(l.counts))
	}
	return l, nil
}

func (l *blockLayout) blocksAcross() int { return (l.width + l.blockW - 1) / l.blockW }
func (l *blockLayout) blocksDown() int   { return (l.height + l.blockH - 1) / l.blockH }

func (l *blockLayout) planes() int {
	if l.planar {
		return l.samples
	}
	return 1
}

// blockSamples is the number of samples per pixel stored in one block.
func (l *blockLayout) blockSamples() int {
	if l.planar {
		return 1
	}
	return l.samples
}

// decodeSamples reads every block of the first IFD into per-sample planes.
// It covers all integer and floating point sample formats, uncompressed,
// LZW or Deflate, with or without a predictor.
func decodeSamples(data []byte, d *ifd, dtype string) ([][]float64, int, int, error) {
	l, err := readLayout(d)
	if err != nil {
		return nil, 0, 0, err
	}
	out := make([][]float64, l.samples)
	for i := range out {
		out[i] = make([]float64, l.width*l.height)
	}

	across, down := l.blocksAcross(), l.blocksDown()
	spb := l.blockSamples()
	rowBytes := l.blockW * spb * l.bytesPerSample
	for p := 0; p < l.planes(); p++ {
		for by := 0; by < down; by++ {
			for bx := 0; bx < across; bx++ {
				idx := p*across*down + by*across + bx
				rows := l.blockH
				if !l.tiled {
					rows = min(l.blockH, l.height-by*l.blockH)
				}
				block, err := l.inflate(data, idx, rows*rowBytes)
				if err != nil {
					return nil, 0, 0, fmt.Errorf("block %d: %w", idx, err)
				}
				bo := d.bo
				for r := 0; r < rows; r++ {
					row := block[r*rowBytes : (r+1)*rowBytes]
					switch l.predictor {
					case predictorNone:
					case predictorHorizontal:
						undoHorizontal(row, spb, l.bytesPerSample, d.bo)
					case predictorFloat:
						undoFloat(row, spb, l.bytesPerSample)
						bo = binary.BigEndian
					default:
						return nil, 0, 0, fmt.Errorf("unsupported predictor %d", l.predictor)
					}
				}
				l.scatter(out, block, p, bx, by, rows, rowBytes, dtype, bo)
			}
		}
	}
	return out, l.width, l.height, nil
}

// inflate returns the decompressed bytes of one block, at least need long.
func (l *blockLayout) inflate(data []byte, idx, need int) ([]byte, error) {
	off, n := l.offsets[idx], l.counts[idx]
	if off+n > uint64(len(data)) {
		return nil, fmt.Errorf("%d bytes at offset %d run past the end of the file", n, off)
	}
	raw := data[off : off+n]

	var block []byte
	switch l.compression {
	case compressionNone:
		block = raw
	case compressionLZW:
		r := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		b, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("lzw: %w", err)
		}
		block = b
	case compressionDeflate, compressionAdobeDeflate:
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		b, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		block = b
	default:
		return nil, fmt.Errorf("unsupported compression %d", l.compression)
	}
	if len(block) < need {
		return nil, fmt.Errorf("%d bytes, want %d", len(block), need)
	}
	// Predictors rewrite the block in place; never touch the source file.
	if l.compression == compressionNone && l.predictor != predictorNone {
		block = bytes.Clone(block[:need])
	}
	return block[:need], nil
}

// scatter copies the pixels of one decoded block into the output planes,
// dropping the padding of edge tiles.
func (l *blockLayout) scatter(out [][]float64, block []byte, plane, bx, by, rows, rowBytes int, dtype string, bo binary.ByteOrder) {
	spb := l.blockSamples()
	x0, y0 := bx*l.blockW, by*l.blockH
	for r := 0; r < rows && y0+r < l.height; r++ {
		row := block[r*rowBytes:]
		for c := 0; c < l.blockW && x0+c < l.width; c++ {
			for s := 0; s < spb; s++ {
				at := (c*spb + s) * l.bytesPerSample
				band := s
				if l.planar {
					band = plane
				}
				out[band][(y0+r)*l.width+x0+c] = sample(row[at:at+l.bytesPerSample], dtype, bo)
			}
		}
	}
}

// sample decodes one stored value.
func sample(b []byte, dtype string, bo binary.ByteOrder) float64 {
	switch dtype {
	case "uint8":
		return float64(b[0])
	case "int8":
		return float64(int8(b[0]))
	case "uint16":
		return float64(bo.Uint16(b))
	case "int16":
		return float64(int16(bo.Uint16(b)))
	case "uint32":
		return float64(bo.Uint32(b))
	case "int32":
		return float64(int32(bo.Uint32(b)))
	case "float32":
		return float64(math.Float32frombits(bo.Uint32(b)))
	case "float64":
		return math.Float64frombits(bo.Uint64(b))
	}
	return math.NaN()
}

// undoHorizontal reverses horizontal differencing of integer samples.
func undoHorizontal(row []byte, spp, size int, bo binary.ByteOrder) {
	n := len(row) / size
	for i := spp; i < n; i++ {
		cur, prev := row[i*size:], row[(i-spp)*size:]
		switch size {
		case 1:
			cur[0] += prev[0]
		case 2:
			bo.PutUint16(cur, bo.Uint16(cur)+bo.Uint16(prev))
		case 4:
			bo.PutUint32(cur, bo.Uint32(cur)+bo.Uint32(prev))
		case 8:
			bo.PutUint64(cur, bo.Uint64(cur)+bo.Uint64(prev))
		}
	}
}

// undoFloat reverses the floating point predictor: byte differencing over
// a row whose sample bytes were split into planes, most significant first.
// The row is left holding big-endian samples.
func undoFloat(row []byte, spp, size int) {
	for i := spp; i < len(row); i++ {
		row[i] += row[i-spp]
	}
	n := len(row) / size
	tmp := bytes.Clone(row)
	for k := 0; k < n; k++ {
		for b := 0; b < size; b++ {
			row[k*size+b] = tmp[b*n+k]
		}
	}
}
