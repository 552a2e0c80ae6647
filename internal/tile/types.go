// internal/tile/types.go - Tile fetching and stitching types
package tile

import (
	"image"
	"image/color"

	"terrain-tiler/internal/geo"
)

// Kind selects the tile content being fetched.
type Kind string

const (
	// KindElevation is terrarium-encoded elevation PNG tiles.
	KindElevation Kind = "elevation"
	// KindSatellite is satellite imagery JPEG tiles.
	KindSatellite Kind = "satellite"
)

// Fill colors for tiles that failed to load. Elevation uses the
// terrarium encoding of 0 m so degraded areas read as sea level.
var (
	elevationFill = color.RGBA{R: 128, G: 0, B: 0, A: 255}
	satelliteFill = color.RGBA{R: 96, G: 96, B: 96, A: 255}
)

// Canvas is a composite raster stitched from fetched tiles, together
// with the tile-space origin needed to map geographic coordinates back
// into local pixel space.
type Canvas struct {
	Image *image.RGBA
	MinX  int
	MinY  int
	Zoom  int
}

// PixelAt maps a geographic point to fractional pixel coordinates inside
// the canvas.
func (c *Canvas) PixelAt(lat, lng float64) (px, py float64) {
	wx, wy := geo.Project(lat, lng, c.Zoom)
	px = wx - float64(c.MinX*geo.TileSize)
	py = wy - float64(c.MinY*geo.TileSize)
	// A canvas fetched across the antimeridian starts west of +180; wrap
	// queried points into its continuous pixel space.
	if px < 0 {
		px += float64(geo.TileSize) * float64(int(1)<<uint(c.Zoom))
	}
	return px, py
}

// At returns the pixel color at integer canvas coordinates, clamping to
// the canvas edge. ok is false only when the canvas is empty.
func (c *Canvas) At(x, y int) (color.RGBA, bool) {
	b := c.Image.Bounds()
	if b.Empty() {
		return color.RGBA{}, false
	}
	if x < b.Min.X {
		x = b.Min.X
	}
	if y < b.Min.Y {
		y = b.Min.Y
	}
	if x >= b.Max.X {
		x = b.Max.X - 1
	}
	if y >= b.Max.Y {
		y = b.Max.Y - 1
	}
	return c.Image.RGBAAt(x, y), true
}

// ElevationFromRGB decodes a terrarium-encoded pixel into meters.
func ElevationFromRGB(r, g, b uint8) float64 {
	return float64(r)*256 + float64(g) + float64(b)/256 - 32768
}
