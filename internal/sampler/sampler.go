// internal/sampler/sampler.go - Uniform sampling over heterogeneous rasters
package sampler

import (
	"image/color"
	"math"

	"terrain-tiler/internal/geotiff"
	"terrain-tiler/internal/tile"
)

// Height yields an elevation in meters for a geographic point. ok is
// false when the backing data has no coverage there; callers substitute
// a fallback or the no-data sentinel, never an error.
type Height interface {
	HeightAt(lat, lng float64) (float64, bool)
}

// Color yields a pixel color for a geographic point. ok is false outside
// the backing raster; callers substitute a neutral missing color.
type Color interface {
	ColorAt(lat, lng float64) (color.RGBA, bool)
}

// CanvasHeight samples terrarium-encoded elevation from a stitched
// canvas with bilinear interpolation over the four nearest pixels.
type CanvasHeight struct {
	canvas *tile.Canvas
}

func NewCanvasHeight(c *tile.Canvas) *CanvasHeight {
	return &CanvasHeight{canvas: c}
}

func (s *CanvasHeight) HeightAt(lat, lng float64) (float64, bool) {
	px, py := s.canvas.PixelAt(lat, lng)
	b := s.canvas.Image.Bounds()
	if px < 0 || py < 0 || px >= float64(b.Dx()) || py >= float64(b.Dy()) {
		return 0, false
	}

	x0 := int(math.Floor(px - 0.5))
	y0 := int(math.Floor(py - 0.5))
	fx := px - 0.5 - float64(x0)
	fy := py - 0.5 - float64(y0)

	h00, ok := s.decode(x0, y0)
	if !ok {
		return 0, false
	}
	h10, _ := s.decode(x0+1, y0)
	h01, _ := s.decode(x0, y0+1)
	h11, _ := s.decode(x0+1, y0+1)

	top := h00*(1-fx) + h10*fx
	bottom := h01*(1-fx) + h11*fx
	return top*(1-fy) + bottom*fy, true
}

func (s *CanvasHeight) decode(x, y int) (float64, bool) {
	c, ok := s.canvas.At(x, y)
	if !ok {
		return 0, false
	}
	return tile.ElevationFromRGB(c.R, c.G, c.B), true
}

// CanvasColor samples pixel colors from a stitched satellite canvas.
type CanvasColor struct {
	canvas *tile.Canvas
}

func NewCanvasColor(c *tile.Canvas) *CanvasColor {
	return &CanvasColor{canvas: c}
}

func (s *CanvasColor) ColorAt(lat, lng float64) (color.RGBA, bool) {
	px, py := s.canvas.PixelAt(lat, lng)
	b := s.canvas.Image.Bounds()
	if px < 0 || py < 0 || px >= float64(b.Dx()) || py >= float64(b.Dy()) {
		return color.RGBA{}, false
	}
	return s.canvas.At(int(px), int(py))
}

// RasterHeight samples elevation from decoded GeoTIFF rasters. Each
// raster carries its own georeferencing; the first one covering the
// point wins, so overlapping chunk buffers resolve deterministically.
type RasterHeight struct {
	rasters []*geotiff.Raster
}

func NewRasterHeight(rasters []*geotiff.Raster) *RasterHeight {
	return &RasterHeight{rasters: rasters}
}

func (s *RasterHeight) HeightAt(lat, lng float64) (float64, bool) {
	for _, r := range s.rasters {
		if v, ok := r.Sample(lat, lng); ok {
			return v, true
		}
	}
	return 0, false
}
