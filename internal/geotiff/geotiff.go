// internal/geotiff/geotiff.go - Minimal GeoTIFF decoding for elevation rasters
package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"terrain-tiler/internal"
)

// Decoder converts raw GeoTIFF bytes into a georeferenced raster. The
// pipeline depends only on this contract; Decode is the built-in
// implementation.
type Decoder func(data []byte) (*Raster, error)

// Raster is a decoded single-band elevation raster with its own corner
// georeferencing in WGS84 degrees.
type Raster struct {
	Width  int
	Height int
	Values []float64

	North float64
	South float64
	East  float64
	West  float64

	NoData    float64
	HasNoData bool
}

// TIFF tag IDs used by elevation GeoTIFFs.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGDALNoData      = 42113
)

const (
	compressionNone    = 1
	compressionDeflate = 8
	compressionOldZlib = 32946

	formatUnsigned = 1
	formatSigned   = 2
	formatFloat    = 3
)

type ifdEntry struct {
	fieldType uint16
	count     uint32
	valueOff  uint32
	raw       [4]byte
}

type tiffFile struct {
	data  []byte
	order binary.ByteOrder
	tags  map[uint16]ifdEntry
}

// Decode parses a classic (non-Big) single-band TIFF with strip or tile
// layout, no compression or deflate, and ModelPixelScale/ModelTiepoint
// georeferencing.
func Decode(data []byte) (*Raster, error) {
	f, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	width := int(f.scalarTag(tagImageWidth))
	height := int(f.scalarTag(tagImageLength))
	if width <= 0 || height <= 0 {
		return nil, internal.NewError(internal.ErrorCodeDecode, "geotiff has no dimensions", nil)
	}
	if n := f.scalarTagDefault(tagSamplesPerPixel, 1); n != 1 {
		return nil, internal.NewError(internal.ErrorCodeDecode, fmt.Sprintf("unsupported samples per pixel %d", n), nil)
	}
	if p := f.scalarTagDefault(tagPredictor, 1); p != 1 {
		return nil, internal.NewError(internal.ErrorCodeDecode, fmt.Sprintf("unsupported predictor %d", p), nil)
	}

	bits := int(f.scalarTagDefault(tagBitsPerSample, 16))
	format := int(f.scalarTagDefault(tagSampleFormat, formatUnsigned))
	compression := int(f.scalarTagDefault(tagCompression, compressionNone))

	values := make([]float64, width*height)
	if _, tiled := f.tags[tagTileOffsets]; tiled {
		err = f.decodeTiles(values, width, height, bits, format, compression)
	} else {
		err = f.decodeStrips(values, width, height, bits, format, compression)
	}
	if err != nil {
		return nil, err
	}

	r := &Raster{Width: width, Height: height, Values: values}
	if err := f.georeference(r); err != nil {
		return nil, err
	}
	if s, ok := f.asciiTag(tagGDALNoData); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(strings.Trim(s, "\x00")), 64); err == nil {
			r.NoData = v
			r.HasNoData = true
		}
	}
	return r, nil
}

func parseHeader(data []byte) (*tiffFile, error) {
	if len(data) < 8 {
		return nil, internal.NewError(internal.ErrorCodeDecode, "geotiff too short", nil)
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, internal.NewError(internal.ErrorCodeDecode, "not a TIFF file", nil)
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, internal.NewError(internal.ErrorCodeDecode, "unsupported TIFF variant", nil)
	}

	f := &tiffFile{data: data, order: order, tags: make(map[uint16]ifdEntry)}
	off := int(order.Uint32(data[4:8]))
	if off+2 > len(data) {
		return nil, internal.NewError(internal.ErrorCodeDecode, "truncated IFD", nil)
	}
	n := int(order.Uint16(data[off : off+2]))
	off += 2
	for i := 0; i < n; i++ {
		if off+12 > len(data) {
			return nil, internal.NewError(internal.ErrorCodeDecode, "truncated IFD entry", nil)
		}
		tag := order.Uint16(data[off : off+2])
		e := ifdEntry{
			fieldType: order.Uint16(data[off+2 : off+4]),
			count:     order.Uint32(data[off+4 : off+8]),
			valueOff:  order.Uint32(data[off+8 : off+12]),
		}
		copy(e.raw[:], data[off+8:off+12])
		f.tags[tag] = e
		off += 12
	}
	return f, nil
}

func fieldSize(t uint16) int {
	switch t {
	case 1, 2, 6, 7: // BYTE, ASCII, SBYTE, UNDEFINED
		return 1
	case 3, 8: // SHORT, SSHORT
		return 2
	case 4, 9, 11: // LONG, SLONG, FLOAT
		return 4
	case 5, 10, 12: // RATIONAL, SRATIONAL, DOUBLE
		return 8
	default:
		return 0
	}
}

// valueBytes returns the raw value data for an entry, inline or offset.
func (f *tiffFile) valueBytes(e ifdEntry) []byte {
	size := fieldSize(e.fieldType) * int(e.count)
	if size <= 4 {
		return e.raw[:size]
	}
	off := int(e.valueOff)
	if off+size > len(f.data) {
		return nil
	}
	return f.data[off : off+size]
}

func (f *tiffFile) uintValues(tag uint16) []uint64 {
	e, ok := f.tags[tag]
	if !ok {
		return nil
	}
	raw := f.valueBytes(e)
	if raw == nil {
		return nil
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.fieldType {
		case 3:
			out[i] = uint64(f.order.Uint16(raw[i*2:]))
		case 4:
			out[i] = uint64(f.order.Uint32(raw[i*4:]))
		default:
			return nil
		}
	}
	return out
}

func (f *tiffFile) doubleValues(tag uint16) []float64 {
	e, ok := f.tags[tag]
	if !ok || e.fieldType != 12 {
		return nil
	}
	raw := f.valueBytes(e)
	if raw == nil {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(f.order.Uint64(raw[i*8:]))
	}
	return out
}

func (f *tiffFile) asciiTag(tag uint16) (string, bool) {
	e, ok := f.tags[tag]
	if !ok || e.fieldType != 2 {
		return "", false
	}
	raw := f.valueBytes(e)
	if raw == nil {
		return "", false
	}
	return string(raw), true
}

func (f *tiffFile) scalarTag(tag uint16) uint64 {
	if v := f.uintValues(tag); len(v) > 0 {
		return v[0]
	}
	return 0
}

func (f *tiffFile) scalarTagDefault(tag uint16, def uint64) uint64 {
	if _, ok := f.tags[tag]; !ok {
		return def
	}
	return f.scalarTag(tag)
}

func (f *tiffFile) segment(offset, count uint64, compression int) ([]byte, error) {
	if offset+count > uint64(len(f.data)) {
		return nil, internal.NewError(internal.ErrorCodeDecode, "segment out of range", nil)
	}
	raw := f.data[offset : offset+count]
	switch compression {
	case compressionNone:
		return raw, nil
	case compressionDeflate, compressionOldZlib:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, internal.NewError(internal.ErrorCodeDecode, "bad deflate segment", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, internal.NewError(internal.ErrorCodeDecode, "bad deflate segment", err)
		}
		return out, nil
	default:
		return nil, internal.NewError(internal.ErrorCodeDecode, fmt.Sprintf("unsupported compression %d", compression), nil)
	}
}

func (f *tiffFile) decodeStrips(values []float64, width, height, bits, format, compression int) error {
	offsets := f.uintValues(tagStripOffsets)
	counts := f.uintValues(tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return internal.NewError(internal.ErrorCodeDecode, "missing strip layout", nil)
	}
	rowsPerStrip := int(f.scalarTagDefault(tagRowsPerStrip, uint64(height)))
	if rowsPerStrip <= 0 {
		rowsPerStrip = height
	}

	sampleBytes := bits / 8
	for s := range offsets {
		raw, err := f.segment(offsets[s], counts[s], compression)
		if err != nil {
			return err
		}
		startRow := s * rowsPerStrip
		endRow := startRow + rowsPerStrip
		if endRow > height {
			endRow = height
		}
		need := (endRow - startRow) * width * sampleBytes
		if len(raw) < need {
			return internal.NewError(internal.ErrorCodeDecode, "short strip", nil)
		}
		for i := 0; i < (endRow-startRow)*width; i++ {
			values[startRow*width+i] = f.sampleAt(raw, i*sampleBytes, bits, format)
		}
	}
	return nil
}

func (f *tiffFile) decodeTiles(values []float64, width, height, bits, format, compression int) error {
	offsets := f.uintValues(tagTileOffsets)
	counts := f.uintValues(tagTileByteCounts)
	tw := int(f.scalarTag(tagTileWidth))
	th := int(f.scalarTag(tagTileLength))
	if tw <= 0 || th <= 0 || len(offsets) == 0 || len(offsets) != len(counts) {
		return internal.NewError(internal.ErrorCodeDecode, "missing tile layout", nil)
	}
	tilesAcross := (width + tw - 1) / tw
	tilesDown := (height + th - 1) / th
	if len(offsets) < tilesAcross*tilesDown {
		return internal.NewError(internal.ErrorCodeDecode, "short tile index", nil)
	}

	sampleBytes := bits / 8
	for ty := 0; ty < tilesDown; ty++ {
		for tx := 0; tx < tilesAcross; tx++ {
			idx := ty*tilesAcross + tx
			raw, err := f.segment(offsets[idx], counts[idx], compression)
			if err != nil {
				return err
			}
			if len(raw) < tw*th*sampleBytes {
				return internal.NewError(internal.ErrorCodeDecode, "short tile", nil)
			}
			for row := 0; row < th; row++ {
				y := ty*th + row
				if y >= height {
					break
				}
				for col := 0; col < tw; col++ {
					x := tx*tw + col
					if x >= width {
						break
					}
					values[y*width+x] = f.sampleAt(raw, (row*tw+col)*sampleBytes, bits, format)
				}
			}
		}
	}
	return nil
}

func (f *tiffFile) sampleAt(raw []byte, off, bits, format int) float64 {
	switch {
	case bits == 32 && format == formatFloat:
		return float64(math.Float32frombits(f.order.Uint32(raw[off:])))
	case bits == 64 && format == formatFloat:
		return math.Float64frombits(f.order.Uint64(raw[off:]))
	case bits == 16 && format == formatSigned:
		return float64(int16(f.order.Uint16(raw[off:])))
	case bits == 16 && format == formatUnsigned:
		return float64(f.order.Uint16(raw[off:]))
	case bits == 32 && format == formatSigned:
		return float64(int32(f.order.Uint32(raw[off:])))
	case bits == 32 && format == formatUnsigned:
		return float64(f.order.Uint32(raw[off:]))
	case bits == 8:
		return float64(raw[off])
	default:
		return math.NaN()
	}
}

// georeference derives corner coordinates from ModelPixelScale and
// ModelTiepoint. Rasters from the elevation providers are plain WGS84
// north-up grids, which is all this supports.
func (f *tiffFile) georeference(r *Raster) error {
	scale := f.doubleValues(tagModelPixelScale)
	tie := f.doubleValues(tagModelTiepoint)
	if len(scale) < 2 || len(tie) < 6 {
		return internal.NewError(internal.ErrorCodeDecode, "geotiff missing georeferencing tags", nil)
	}
	// Tiepoint maps raster (i,j) to model (X,Y).
	originX := tie[3] - tie[0]*scale[0]
	originY := tie[4] + tie[1]*scale[1]
	r.West = originX
	r.North = originY
	r.East = originX + float64(r.Width)*scale[0]
	r.South = originY - float64(r.Height)*scale[1]
	return nil
}

// Contains reports whether the point falls inside the raster's footprint.
func (r *Raster) Contains(lat, lng float64) bool {
	return lat <= r.North && lat >= r.South && lng >= r.West && lng <= r.East
}

// Sample returns the bilinearly interpolated elevation at the point, or
// false when the point is outside the raster or lands on nodata cells.
func (r *Raster) Sample(lat, lng float64) (float64, bool) {
	if !r.Contains(lat, lng) {
		return 0, false
	}
	px := (lng - r.West) / (r.East - r.West) * float64(r.Width)
	py := (r.North - lat) / (r.North - r.South) * float64(r.Height)

	x0 := int(math.Floor(px - 0.5))
	y0 := int(math.Floor(py - 0.5))
	fx := px - 0.5 - float64(x0)
	fy := py - 0.5 - float64(y0)

	v00, ok00 := r.cell(x0, y0)
	v10, ok10 := r.cell(x0+1, y0)
	v01, ok01 := r.cell(x0, y0+1)
	v11, ok11 := r.cell(x0+1, y0+1)
	if !ok00 || !ok10 || !ok01 || !ok11 {
		// Fall back to the nearest valid cell when the 2x2 window touches
		// nodata or the raster edge.
		if v, ok := r.cell(int(math.Round(px-0.5)), int(math.Round(py-0.5))); ok {
			return v, true
		}
		return 0, false
	}

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy, true
}

func (r *Raster) cell(x, y int) (float64, bool) {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= r.Width {
		x = r.Width - 1
	}
	if y >= r.Height {
		y = r.Height - 1
	}
	v := r.Values[y*r.Width+x]
	if math.IsNaN(v) {
		return 0, false
	}
	if r.HasNoData && v == r.NoData {
		return 0, false
	}
	return v, true
}
