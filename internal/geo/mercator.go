// internal/geo/mercator.go - Spherical Web Mercator projection math
package geo

import "math"

const (
	// TileSize is the pixel size of one map tile.
	TileSize = 256

	// MaxLatitude is the Web Mercator latitude cutoff. Latitudes beyond it
	// project to infinite y, so inputs are clamped before projecting.
	MaxLatitude = 85.05112878

	// EarthRadius is the WGS84 equatorial radius in meters.
	EarthRadius = 6378137.0

	// MetersPerDegreeLat is the approximate meter length of one degree of
	// latitude, constant across the globe.
	MetersPerDegreeLat = 111320.0
)

// Project converts a lat/lng to pixel coordinates in a 256*2^zoom-wide
// world image. Latitude is clamped to the Mercator-safe range first.
func Project(lat, lng float64, zoom int) (x, y float64) {
	lat = clampLat(lat)
	world := float64(TileSize) * math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x = (lng + 180) / 360 * world
	y = (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * world
	return x, y
}

// Unproject is the inverse of Project.
func Unproject(x, y float64, zoom int) (lat, lng float64) {
	world := float64(TileSize) * math.Exp2(float64(zoom))
	lng = x/world*360 - 180
	n := math.Pi - 2*math.Pi*y/world
	lat = math.Atan(math.Sinh(n)) * 180 / math.Pi
	return lat, lng
}

// NormalizeLng wraps any finite longitude into [-180, 180).
func NormalizeLng(lng float64) float64 {
	l := math.Mod(lng+180, 360)
	if l < 0 {
		l += 360
	}
	return l - 180
}

// MetersPerDegreeLng returns the meter length of one degree of longitude
// at the given latitude.
func MetersPerDegreeLng(lat float64) float64 {
	return MetersPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// ZoomForResolution returns the lowest zoom level whose ground resolution
// at the given latitude is at least as fine as metersPerPixel, clamped to
// [0, maxZoom].
func ZoomForResolution(lat, metersPerPixel float64, maxZoom int) int {
	circumference := 2 * math.Pi * EarthRadius * math.Cos(clampLat(lat)*math.Pi/180)
	zoom := int(math.Ceil(math.Log2(circumference / (TileSize * metersPerPixel))))
	if zoom < 0 {
		zoom = 0
	}
	if zoom > maxZoom {
		zoom = maxZoom
	}
	return zoom
}

func clampLat(lat float64) float64 {
	if lat > MaxLatitude {
		return MaxLatitude
	}
	if lat < -MaxLatitude {
		return -MaxLatitude
	}
	return lat
}
