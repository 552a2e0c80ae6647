// internal/terrain/types.go - Terrain dataset and collaborator contracts
package terrain

import (
	"context"
	"image"
	"image/color"

	"github.com/paulmach/orb/geojson"

	"terrain-tiler/internal"
	"terrain-tiler/internal/geo"
)

// Dataset is the assembled terrain output. The height map holds
// width*height values in row-major order with row 0 at the northern
// edge; non-sentinel values lie in [MinHeight, MaxHeight].
type Dataset struct {
	HeightMap []float64
	Width     int
	Height    int
	MinHeight float64
	MaxHeight float64

	// Bounds is the post-resample footprint. It may differ slightly from
	// the requested extent due to grid snapping.
	Bounds geo.Bounds

	SatelliteImage *image.RGBA
	OSMFeatures    []*geojson.Feature
	Textures       *Textures

	// Source names the elevation provider the primary samples came from.
	Source internal.Provider
	// USGSFallback is set when USGS data was requested but the dataset
	// was built without it.
	USGSFallback bool

	// Provenance retains the raw GeoTIFF bytes of the premium source for
	// callers that re-export source data. Nil for baseline-only datasets.
	Provenance *Provenance
}

// Provenance records the raw bytes behind a premium elevation source.
type Provenance struct {
	Source   internal.Provider
	Archives [][]byte
}

// Textures holds the derived raster textures produced by the external
// texture collaborators.
type Textures struct {
	OSM             *image.RGBA
	Hybrid          *image.RGBA
	Segmented       *image.RGBA
	SegmentedHybrid *image.RGBA
}

// Options describe one terrain request. Resolution is used as both the
// pixel size of the output grid and its extent in meters: output scale
// is always exactly 1 meter per pixel.
type Options struct {
	Center     geo.LatLng
	Resolution int

	IncludeOSM bool
	UseUSGS    bool
	UseGPXZ    bool
	GPXZAPIKey string

	BaseColor color.RGBA

	// Progress, when set, receives a message at each major pipeline
	// milestone, suitable for UI status text.
	Progress func(message string)
}

// OSMFetcher retrieves vector features for a bounding box. It is always
// called with the final post-resample bounds, never the request bounds.
type OSMFetcher interface {
	FetchFeatures(ctx context.Context, bounds geo.Bounds) ([]*geojson.Feature, error)
}

// TextureGenerator produces derived textures from an assembled dataset.
// Implementations live outside this module; the orchestrator only
// invokes the contract.
type TextureGenerator interface {
	GenerateOSMTexture(ctx context.Context, ds *Dataset, baseColor color.RGBA) (*image.RGBA, error)
	GenerateHybridTexture(ctx context.Context, ds *Dataset, baseColor color.RGBA) (*image.RGBA, error)
	GenerateSegmentedHybridTexture(ctx context.Context, ds *Dataset, baseColor color.RGBA) (*image.RGBA, error)
	SegmentSatelliteTexture(ctx context.Context, satellite *image.RGBA) (*image.RGBA, error)
}
