// internal/resample/resample.go - Metric grid resampling
package resample

import (
	"context"
	"image"
	"image/color"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"terrain-tiler/internal"
	"terrain-tiler/internal/geo"
	"terrain-tiler/internal/sampler"
)

// NoData marks cells where no elevation sample was available from any
// source. It is excluded from min/max computation and consumers clamp it
// to MinHeight before display.
const NoData = -99999.0

// MissingColor fills satellite pixels the color sampler cannot serve.
var MissingColor = color.RGBA{R: 96, G: 96, B: 96, A: 255}

// Grid is a uniform metric heightmap: 1 pixel = 1 meter, row 0 at the
// northern edge.
type Grid struct {
	Values    []float64
	Width     int
	Height    int
	MinHeight float64
	MaxHeight float64
	// Bounds is the geographic footprint of the produced grid. It may
	// differ slightly from the requested bounds due to grid snapping, and
	// downstream consumers (OSM fetch) must use it instead.
	Bounds geo.Bounds
}

// Request describes one height resampling run.
type Request struct {
	Center geo.LatLng
	Width  int
	Height int
	// Primary is the preferred elevation source. Fallback, when set,
	// fills cells the primary has no coverage for (chunk gaps, geofence
	// edges). Cells neither can serve become NoData.
	Primary  sampler.Height
	Fallback sampler.Height
	// Smooth applies an averaging pass over the raw grid, used when a
	// nominally high-res source is coarser than the 1 m output and would
	// otherwise show terracing.
	Smooth bool
}

// Heights walks the output grid in local metric space around the center
// and samples elevation for every cell. Rows run in parallel; this is
// the heaviest numeric loop in the pipeline and callers should treat it
// as background work.
func Heights(ctx context.Context, req Request) (*Grid, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, internal.NewError(internal.ErrorCodeValidation, "grid dimensions must be positive", nil)
	}
	if req.Primary == nil {
		return nil, internal.NewError(internal.ErrorCodeValidation, "primary sampler is required", nil)
	}

	values := make([]float64, req.Width*req.Height)
	latStep := 1 / geo.MetersPerDegreeLat
	lngStep := 1 / geo.MetersPerDegreeLng(req.Center.Lat)
	halfW := float64(req.Width-1) / 2
	halfH := float64(req.Height-1) / 2

	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0)).WithContext(ctx)
	for row := 0; row < req.Height; row++ {
		row := row
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lat := req.Center.Lat + (halfH-float64(row))*latStep
			for col := 0; col < req.Width; col++ {
				lng := geo.NormalizeLng(req.Center.Lng + (float64(col)-halfW)*lngStep)
				v, ok := req.Primary.HeightAt(lat, lng)
				if !ok && req.Fallback != nil {
					v, ok = req.Fallback.HeightAt(lat, lng)
				}
				if !ok {
					v = NoData
				}
				values[row*req.Width+col] = v
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	// Fallback fill happens during the walk, smoothing after: blurring a
	// grid that still contains sentinels would smear the guard value into
	// real data.
	if req.Smooth {
		values = boxBlur(values, req.Width, req.Height)
	}

	g := &Grid{
		Values: values,
		Width:  req.Width,
		Height: req.Height,
		Bounds: geo.Bounds{
			North: req.Center.Lat + halfH*latStep,
			South: req.Center.Lat - halfH*latStep,
			West:  geo.NormalizeLng(req.Center.Lng - halfW*lngStep),
			East:  geo.NormalizeLng(req.Center.Lng + halfW*lngStep),
		},
	}
	g.MinHeight, g.MaxHeight = scanRange(values)
	return g, nil
}

// Colors runs the same metric grid walk over a color sampler, producing
// an image suitable for encoding as a texture.
func Colors(ctx context.Context, center geo.LatLng, width, height int, cs sampler.Color) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, internal.NewError(internal.ErrorCodeValidation, "grid dimensions must be positive", nil)
	}
	if cs == nil {
		return nil, internal.NewError(internal.ErrorCodeValidation, "color sampler is required", nil)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	latStep := 1 / geo.MetersPerDegreeLat
	lngStep := 1 / geo.MetersPerDegreeLng(center.Lat)
	halfW := float64(width-1) / 2
	halfH := float64(height-1) / 2

	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0)).WithContext(ctx)
	for row := 0; row < height; row++ {
		row := row
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lat := center.Lat + (halfH-float64(row))*latStep
			for col := 0; col < width; col++ {
				lng := geo.NormalizeLng(center.Lng + (float64(col)-halfW)*lngStep)
				c, ok := cs.ColorAt(lat, lng)
				if !ok {
					c = MissingColor
				}
				img.SetRGBA(col, row, c)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}

// boxBlur averages each cell with its 3x3 neighborhood, skipping
// sentinel cells both as sources and as targets.
func boxBlur(values []float64, width, height int) []float64 {
	out := make([]float64, len(values))
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			idx := row*width + col
			if values[idx] == NoData {
				out[idx] = NoData
				continue
			}
			var sum float64
			var count int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					y, x := row+dy, col+dx
					if y < 0 || y >= height || x < 0 || x >= width {
						continue
					}
					v := values[y*width+x]
					if v == NoData {
						continue
					}
					sum += v
					count++
				}
			}
			out[idx] = sum / float64(count)
		}
	}
	return out
}

// scanRange computes min/max over non-sentinel cells, defaulting to 0/0
// when every cell is sentinel.
func scanRange(values []float64) (minH, maxH float64) {
	minH = math.Inf(1)
	maxH = math.Inf(-1)
	found := false
	for _, v := range values {
		if v == NoData {
			continue
		}
		found = true
		if v < minH {
			minH = v
		}
		if v > maxH {
			maxH = v
		}
	}
	if !found {
		return 0, 0
	}
	return minH, maxH
}
