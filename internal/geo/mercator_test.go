// internal/geo/mercator_test.go - Unit tests for Web Mercator projection
package geo

import (
	"math"
	"testing"
)

func TestProjectUnprojectRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lng  float64
		zoom int
	}{
		{"equator origin", 0, 0, 10},
		{"alps", 46.55, 8.56, 15},
		{"denver", 39.74, -104.99, 12},
		{"southern hemisphere", -33.87, 151.21, 14},
		{"near dateline east", 52.0, 179.9, 11},
		{"near dateline west", 52.0, -179.9, 11},
		{"high latitude", 71.0, -8.0, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Project(tt.lat, tt.lng, tt.zoom)
			lat, lng := Unproject(x, y, tt.zoom)
			if math.Abs(lat-tt.lat) > 1e-6 {
				t.Errorf("round-trip lat = %f, want %f", lat, tt.lat)
			}
			if math.Abs(lng-tt.lng) > 1e-6 {
				t.Errorf("round-trip lng = %f, want %f", lng, tt.lng)
			}
		})
	}
}

func TestProjectClampsLatitude(t *testing.T) {
	// Latitudes beyond the Mercator cutoff must project to finite values
	// identical to the cutoff itself.
	xMax, yMax := Project(MaxLatitude, 0, 10)
	x, y := Project(89.9, 0, 10)
	if math.IsInf(y, 0) || math.IsNaN(y) {
		t.Fatalf("Project(89.9) y = %f, want finite", y)
	}
	if x != xMax || y != yMax {
		t.Errorf("Project(89.9) = (%f, %f), want clamped (%f, %f)", x, y, xMax, yMax)
	}

	_, ySouth := Project(-89.9, 0, 10)
	_, yCut := Project(-MaxLatitude, 0, 10)
	if ySouth != yCut {
		t.Errorf("Project(-89.9) y = %f, want clamped %f", ySouth, yCut)
	}
}

func TestNormalizeLng(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", 45.0, 45.0},
		{"west edge", -180.0, -180.0},
		{"east edge wraps", 180.0, -180.0},
		{"wrap positive", 190.0, -170.0},
		{"wrap negative", -190.0, 170.0},
		{"full turn", 360.0, 0.0},
		{"multiple turns", 725.0, 5.0},
		{"large negative", -545.0, 175.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLng(tt.in)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizeLng(%f) = %f, want %f", tt.in, got, tt.want)
			}
			// Normalization is idempotent.
			if again := NormalizeLng(got); again != got {
				t.Errorf("NormalizeLng(%f) = %f, not idempotent", got, again)
			}
		})
	}
}

func TestMetersPerDegreeLng(t *testing.T) {
	if got := MetersPerDegreeLng(0); math.Abs(got-MetersPerDegreeLat) > 1e-9 {
		t.Errorf("MetersPerDegreeLng(0) = %f, want %f", got, MetersPerDegreeLat)
	}
	if got := MetersPerDegreeLng(60); math.Abs(got-MetersPerDegreeLat/2) > 1e-6 {
		t.Errorf("MetersPerDegreeLng(60) = %f, want %f", got, MetersPerDegreeLat/2)
	}
}

func TestZoomForResolution(t *testing.T) {
	tests := []struct {
		name           string
		lat            float64
		metersPerPixel float64
		maxZoom        int
		want           int
	}{
		// At the equator, zoom 15 ground resolution is ~4.77 m/px.
		{"1m clamps to max", 0, 1, 15, 15},
		{"coarse request", 0, 5000, 15, 5},
		{"never negative", 0, 1e9, 15, 0},
		{"higher ceiling", 0, 1, 22, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZoomForResolution(tt.lat, tt.metersPerPixel, tt.maxZoom)
			if got != tt.want {
				t.Errorf("ZoomForResolution(%f, %f, %d) = %d, want %d",
					tt.lat, tt.metersPerPixel, tt.maxZoom, got, tt.want)
			}
		})
	}
}
