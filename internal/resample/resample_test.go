// internal/resample/resample_test.go - Unit tests for metric grid resampling
package resample

import (
	"context"
	"image/color"
	"math"
	"testing"

	"terrain-tiler/internal"
	"terrain-tiler/internal/geo"
)

// heightFunc adapts a function to the height sampler contract.
type heightFunc func(lat, lng float64) (float64, bool)

func (f heightFunc) HeightAt(lat, lng float64) (float64, bool) { return f(lat, lng) }

// colorFunc adapts a function to the color sampler contract.
type colorFunc func(lat, lng float64) (color.RGBA, bool)

func (f colorFunc) ColorAt(lat, lng float64) (color.RGBA, bool) { return f(lat, lng) }

func constHeight(v float64) heightFunc {
	return func(lat, lng float64) (float64, bool) { return v, true }
}

func noHeight() heightFunc {
	return func(lat, lng float64) (float64, bool) { return 0, false }
}

func TestHeightsGridShape(t *testing.T) {
	center := geo.LatLng{Lat: 46.55, Lng: 8.56}
	grid, err := Heights(context.Background(), Request{
		Center: center, Width: 16, Height: 16,
		Primary: constHeight(1200),
	})
	if err != nil {
		t.Fatalf("Heights() error = %v", err)
	}

	if grid.Width != 16 || grid.Height != 16 {
		t.Errorf("grid = %dx%d, want 16x16", grid.Width, grid.Height)
	}
	if len(grid.Values) != 256 {
		t.Errorf("len(Values) = %d, want 256", len(grid.Values))
	}
	if grid.MinHeight != 1200 || grid.MaxHeight != 1200 {
		t.Errorf("range = [%f, %f], want [1200, 1200]", grid.MinHeight, grid.MaxHeight)
	}

	// The grid footprint is centered on the request and spans width-1
	// meters between cell centers.
	c := grid.Bounds.Center()
	if math.Abs(c.Lat-center.Lat) > 1e-9 || math.Abs(c.Lng-center.Lng) > 1e-9 {
		t.Errorf("bounds center = %v, want %v", c, center)
	}
	heightMeters := (grid.Bounds.North - grid.Bounds.South) * geo.MetersPerDegreeLat
	if math.Abs(heightMeters-15) > 0.01 {
		t.Errorf("bounds span = %f m, want 15 between outer cell centers", heightMeters)
	}
}

func TestHeightsSentinelExcludedFromRange(t *testing.T) {
	center := geo.LatLng{Lat: 10, Lng: 10}
	// Coverage only north of the center line, nothing below it.
	partial := heightFunc(func(lat, lng float64) (float64, bool) {
		if lat > center.Lat {
			return 555, true
		}
		return 0, false
	})

	grid, err := Heights(context.Background(), Request{
		Center: center, Width: 8, Height: 8, Primary: partial,
	})
	if err != nil {
		t.Fatalf("Heights() error = %v", err)
	}

	sawSentinel := false
	for _, v := range grid.Values {
		if v == NoData {
			sawSentinel = true
		}
	}
	if !sawSentinel {
		t.Fatalf("expected sentinel cells in partially covered grid")
	}
	if grid.MinHeight != 555 || grid.MaxHeight != 555 {
		t.Errorf("range = [%f, %f], want [555, 555] excluding sentinel", grid.MinHeight, grid.MaxHeight)
	}
}

func TestHeightsFallbackFillsGaps(t *testing.T) {
	center := geo.LatLng{Lat: 10, Lng: 10}
	partial := heightFunc(func(lat, lng float64) (float64, bool) {
		if lng > center.Lng {
			return 300, true
		}
		return 0, false
	})

	grid, err := Heights(context.Background(), Request{
		Center: center, Width: 8, Height: 8,
		Primary:  partial,
		Fallback: constHeight(100),
	})
	if err != nil {
		t.Fatalf("Heights() error = %v", err)
	}

	for i, v := range grid.Values {
		if v != 300 && v != 100 {
			t.Fatalf("Values[%d] = %f, want primary 300 or fallback 100", i, v)
		}
	}
	if grid.MinHeight != 100 || grid.MaxHeight != 300 {
		t.Errorf("range = [%f, %f], want [100, 300]", grid.MinHeight, grid.MaxHeight)
	}
}

func TestHeightsAllMissingDefaultsRange(t *testing.T) {
	grid, err := Heights(context.Background(), Request{
		Center: geo.LatLng{}, Width: 4, Height: 4, Primary: noHeight(),
	})
	if err != nil {
		t.Fatalf("Heights() error = %v", err)
	}
	for i, v := range grid.Values {
		if v != NoData {
			t.Fatalf("Values[%d] = %f, want sentinel", i, v)
		}
	}
	if grid.MinHeight != 0 || grid.MaxHeight != 0 {
		t.Errorf("range = [%f, %f], want [0, 0] for an empty grid", grid.MinHeight, grid.MaxHeight)
	}
}

func TestHeightsValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"zero width", Request{Width: 0, Height: 4, Primary: constHeight(1)}},
		{"negative height", Request{Width: 4, Height: -1, Primary: constHeight(1)}},
		{"nil primary", Request{Width: 4, Height: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Heights(context.Background(), tt.req); err == nil {
				t.Errorf("Heights() succeeded, want validation error")
			}
		})
	}
}

func TestHeightsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Heights(ctx, Request{
		Center: geo.LatLng{}, Width: 64, Height: 64, Primary: constHeight(1),
	})
	if !internal.IsCanceled(err) {
		t.Errorf("Heights() error = %v, want cancellation", err)
	}
}

func TestHeightsSmoothing(t *testing.T) {
	center := geo.LatLng{Lat: 0, Lng: 0}
	// A single-step edge along longitude; smoothing must soften it.
	stepped := heightFunc(func(lat, lng float64) (float64, bool) {
		if lng >= 0 {
			return 10, true
		}
		return 0, true
	})

	rough, err := Heights(context.Background(), Request{
		Center: center, Width: 8, Height: 8, Primary: stepped,
	})
	if err != nil {
		t.Fatalf("Heights() error = %v", err)
	}
	smooth, err := Heights(context.Background(), Request{
		Center: center, Width: 8, Height: 8, Primary: stepped, Smooth: true,
	})
	if err != nil {
		t.Fatalf("Heights(smooth) error = %v", err)
	}

	intermediate := false
	for _, v := range smooth.Values {
		if v > 0.1 && v < 9.9 {
			intermediate = true
		}
	}
	if !intermediate {
		t.Errorf("smoothed grid has no intermediate values across the step")
	}
	for _, v := range rough.Values {
		if v != 0 && v != 10 {
			t.Errorf("unsmoothed grid has blended value %f", v)
		}
	}
}

func TestBoxBlurPreservesSentinel(t *testing.T) {
	values := []float64{
		1, 1, 1,
		1, NoData, 1,
		1, 1, 1,
	}
	out := boxBlur(values, 3, 3)
	if out[4] != NoData {
		t.Errorf("blurred sentinel cell = %f, want sentinel preserved", out[4])
	}
	for i, v := range out {
		if i == 4 {
			continue
		}
		if v != 1 {
			t.Errorf("out[%d] = %f, want 1 (sentinel excluded from averages)", i, v)
		}
	}
}

func TestColors(t *testing.T) {
	want := color.RGBA{50, 90, 40, 255}
	img, err := Colors(context.Background(), geo.LatLng{Lat: 5, Lng: 5}, 8, 8,
		colorFunc(func(lat, lng float64) (color.RGBA, bool) { return want, true }))
	if err != nil {
		t.Fatalf("Colors() error = %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("image = %v, want 8x8", img.Bounds())
	}
	if got := img.RGBAAt(3, 3); got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

func TestColorsMissingPixels(t *testing.T) {
	img, err := Colors(context.Background(), geo.LatLng{}, 4, 4,
		colorFunc(func(lat, lng float64) (color.RGBA, bool) { return color.RGBA{}, false }))
	if err != nil {
		t.Fatalf("Colors() error = %v", err)
	}
	if got := img.RGBAAt(1, 1); got != MissingColor {
		t.Errorf("missing pixel = %v, want %v", got, MissingColor)
	}
}
