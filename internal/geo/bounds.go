// internal/geo/bounds.go - Geographic bounding boxes and metric chunking
package geo

import "math"

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// Bounds is a geographic bounding box in degrees. North > South always
// holds; West > East signals a box that crosses the antimeridian.
type Bounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

// CrossesAntimeridian reports whether the box wraps across ±180°.
func (b Bounds) CrossesAntimeridian() bool {
	return b.West > b.East
}

// Center returns the geographic center of the box.
func (b Bounds) Center() LatLng {
	lng := (b.West + b.East) / 2
	if b.CrossesAntimeridian() {
		lng = NormalizeLng((b.West + b.East + 360) / 2)
	}
	return LatLng{Lat: (b.North + b.South) / 2, Lng: lng}
}

// WidthDegrees returns the longitudinal span, accounting for wrap.
func (b Bounds) WidthDegrees() float64 {
	if b.CrossesAntimeridian() {
		return (180 - b.West) + (b.East + 180)
	}
	return b.East - b.West
}

// AreaSquareKm returns the approximate area of the box in km².
func (b Bounds) AreaSquareKm() float64 {
	mid := (b.North + b.South) / 2
	w := b.WidthDegrees() * MetersPerDegreeLng(mid)
	h := (b.North - b.South) * MetersPerDegreeLat
	return w * h / 1e6
}

// SplitAntimeridian returns the box unchanged when it does not wrap, or
// two non-wrapping boxes split at ±180° when it does. The inputs may use
// a continuous longitude space (West < -180 or East > 180) as produced by
// chunking.
func (b Bounds) SplitAntimeridian() []Bounds {
	switch {
	case b.East > 180:
		return []Bounds{
			{North: b.North, South: b.South, West: b.West, East: 180},
			{North: b.North, South: b.South, West: -180, East: b.East - 360},
		}
	case b.West < -180:
		return []Bounds{
			{North: b.North, South: b.South, West: b.West + 360, East: 180},
			{North: b.North, South: b.South, West: -180, East: b.East},
		}
	case b.CrossesAntimeridian():
		return []Bounds{
			{North: b.North, South: b.South, West: b.West, East: 180},
			{North: b.North, South: b.South, West: -180, East: b.East},
		}
	default:
		return []Bounds{b}
	}
}

// BoundsAround returns the box centered on the given point covering
// meters in each axis, using the local equirectangular approximation.
func BoundsAround(center LatLng, meters float64) Bounds {
	half := meters / 2
	latHalf := half / MetersPerDegreeLat
	lngHalf := half / MetersPerDegreeLng(center.Lat)
	return Bounds{
		North: center.Lat + latHalf,
		South: center.Lat - latHalf,
		West:  NormalizeLng(center.Lng - lngHalf),
		East:  NormalizeLng(center.Lng + lngHalf),
	}
}

// Chunk splits the box into sub-boxes of at most sideMeters per side,
// each expanded by bufferMeters so neighbors overlap and downstream
// resampling shows no seams. Sub-boxes that would cross the antimeridian
// are split into two non-wrapping boxes.
func Chunk(b Bounds, sideMeters, bufferMeters float64) []Bounds {
	mid := (b.North + b.South) / 2
	latStep := sideMeters / MetersPerDegreeLat
	lngStep := sideMeters / MetersPerDegreeLng(mid)
	latBuf := bufferMeters / MetersPerDegreeLat
	lngBuf := bufferMeters / MetersPerDegreeLng(mid)

	height := b.North - b.South
	width := b.WidthDegrees()
	rows := int(math.Ceil(height / latStep))
	cols := int(math.Ceil(width / lngStep))
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	chunks := make([]Bounds, 0, rows*cols)
	for i := 0; i < rows; i++ {
		south := b.South + float64(i)*latStep
		north := math.Min(south+latStep, b.North)
		for j := 0; j < cols; j++ {
			// Longitudes run in a continuous space starting at West so
			// wrapped boxes chunk the same way as plain ones.
			west := b.West + float64(j)*lngStep
			east := math.Min(west+lngStep, b.West+width)
			if west >= 180 {
				west -= 360
				east -= 360
			}
			c := Bounds{
				North: math.Min(north+latBuf, 90),
				South: math.Max(south-latBuf, -90),
				West:  west - lngBuf,
				East:  east + lngBuf,
			}
			chunks = append(chunks, c.SplitAntimeridian()...)
		}
	}
	return chunks
}
