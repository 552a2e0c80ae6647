// internal/sampler/sampler_test.go - Unit tests for geographic samplers
package sampler

import (
	"image"
	"image/color"
	"math"
	"testing"

	"terrain-tiler/internal/geotiff"
	"terrain-tiler/internal/tile"
)

// worldCanvas builds a whole-world zoom-0 canvas filled with one color.
func worldCanvas(c color.RGBA) *tile.Canvas {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return &tile.Canvas{Image: img, MinX: 0, MinY: 0, Zoom: 0}
}

func TestCanvasHeight(t *testing.T) {
	// Terrarium encoding of 50 m: r=128, g=50, b=0.
	s := NewCanvasHeight(worldCanvas(color.RGBA{128, 50, 0, 255}))

	tests := []struct {
		name     string
		lat, lng float64
	}{
		{"equator", 0, 0},
		{"alps", 46.55, 8.56},
		{"west edge", 10, -179.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := s.HeightAt(tt.lat, tt.lng)
			if !ok {
				t.Fatalf("HeightAt(%f, %f) not ok", tt.lat, tt.lng)
			}
			if math.Abs(v-50) > 1e-9 {
				t.Errorf("HeightAt(%f, %f) = %f, want 50", tt.lat, tt.lng, v)
			}
		})
	}
}

func TestCanvasColor(t *testing.T) {
	want := color.RGBA{10, 120, 30, 255}
	s := NewCanvasColor(worldCanvas(want))

	got, ok := s.ColorAt(12.3, 45.6)
	if !ok || got != want {
		t.Errorf("ColorAt() = (%v, %v), want (%v, true)", got, ok, want)
	}
}

func flatRaster(value, north, south, east, west float64) *geotiff.Raster {
	values := make([]float64, 16)
	for i := range values {
		values[i] = value
	}
	return &geotiff.Raster{
		Width: 4, Height: 4, Values: values,
		North: north, South: south, East: east, West: west,
	}
}

func TestRasterHeightFirstCoveringWins(t *testing.T) {
	// Two overlapping rasters; the first must win inside the overlap so
	// chunk buffer zones resolve deterministically.
	s := NewRasterHeight([]*geotiff.Raster{
		flatRaster(100, 1, 0, 1, 0),
		flatRaster(200, 1, 0, 1.5, 0.5),
	})

	v, ok := s.HeightAt(0.5, 0.7)
	if !ok || v != 100 {
		t.Errorf("HeightAt(overlap) = (%f, %v), want (100, true)", v, ok)
	}
	v, ok = s.HeightAt(0.5, 1.3)
	if !ok || v != 200 {
		t.Errorf("HeightAt(second only) = (%f, %v), want (200, true)", v, ok)
	}
	if _, ok := s.HeightAt(0.5, 5); ok {
		t.Errorf("HeightAt(outside all) returned ok")
	}
}

func TestRasterHeightEmpty(t *testing.T) {
	s := NewRasterHeight(nil)
	if _, ok := s.HeightAt(0, 0); ok {
		t.Errorf("HeightAt() with no rasters returned ok")
	}
}
