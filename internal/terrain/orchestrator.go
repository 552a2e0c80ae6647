// internal/terrain/orchestrator.go - Top-level terrain generation pipeline
package terrain

import (
	"context"
	"image"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"terrain-tiler/internal"
	"terrain-tiler/internal/config"
	"terrain-tiler/internal/geo"
	"terrain-tiler/internal/logging"
	"terrain-tiler/internal/provider"
	"terrain-tiler/internal/resample"
	"terrain-tiler/internal/sampler"
	"terrain-tiler/internal/tile"
)

// Generator runs the terrain acquisition pipeline: premium elevation
// sources in priority order with fallback, the global baseline tile set,
// metric resampling, and dataset assembly.
type Generator struct {
	cfg   *config.Config
	tiles *tile.Fetcher
	usgs  *provider.USGS

	// gpxzLimits is the one-per-provider-session rate-limit state, owned
	// here and handed by reference to each GPXZ adapter instance.
	gpxzLimits *provider.RateLimitState

	osm      OSMFetcher
	textures TextureGenerator

	logger *slog.Logger
}

// NewGenerator wires the pipeline. The OSM fetcher and texture generator
// are external collaborators and may be nil.
func NewGenerator(cfg *config.Config, osm OSMFetcher, textures TextureGenerator) *Generator {
	return &Generator{
		cfg:        cfg,
		tiles:      tile.NewFetcher(cfg),
		usgs:       provider.NewUSGS(cfg),
		gpxzLimits: provider.NewRateLimitState(),
		osm:        osm,
		textures:   textures,
		logger:     logging.L(),
	}
}

// Generate produces a terrain dataset for the request. Callers receive
// either a completed dataset, a cancellation, or an explicit failure —
// never a silently empty dataset presented as success.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Dataset, error) {
	if opts.Resolution <= 0 {
		return nil, internal.NewError(internal.ErrorCodeValidation, "resolution must be positive", nil)
	}
	report := func(msg string) {
		g.logger.Info(msg)
		if opts.Progress != nil {
			opts.Progress(msg)
		}
	}

	center := geo.LatLng{Lat: opts.Center.Lat, Lng: geo.NormalizeLng(opts.Center.Lng)}
	bounds := geo.BoundsAround(center, float64(opts.Resolution))
	report("computing terrain bounds")

	premium, prov, smooth, usgsFallback, err := g.fetchPremium(ctx, opts, bounds)
	if err != nil {
		return nil, err
	}

	// The baseline tile set is always fetched: it backfills premium
	// coverage gaps, provides the satellite imagery no premium source
	// carries, and is the sole elevation source when nothing else is
	// available.
	report("fetching baseline tiles")
	zoom := geo.ZoomForResolution(center.Lat, 1, g.cfg.Tiles.MaxZoom)
	var elevCanvas, satCanvas *tile.Canvas
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		elevCanvas, err = g.tiles.Stitch(gctx, bounds, zoom, tile.KindElevation)
		return err
	})
	eg.Go(func() error {
		var err error
		satCanvas, err = g.tiles.Stitch(gctx, bounds, zoom, tile.KindSatellite)
		return err
	})
	if err := eg.Wait(); err != nil {
		if internal.IsCanceled(err) {
			return nil, err
		}
		// Baseline total failure is terminal; there is nothing left to
		// fall back to.
		return nil, internal.NewError(internal.ErrorCodeProvider, "baseline tile fetch failed", err)
	}

	baseline := sampler.NewCanvasHeight(elevCanvas)
	heightReq := resample.Request{
		Center: center,
		Width:  opts.Resolution,
		Height: opts.Resolution,
		Smooth: smooth,
	}
	source := internal.ProviderBaseline
	if premium != nil {
		heightReq.Primary = premium
		heightReq.Fallback = baseline
		source = prov.Source
	} else {
		heightReq.Primary = baseline
	}

	report("resampling terrain")
	var grid *resample.Grid
	var satellite *image.RGBA
	rg, rctx := errgroup.WithContext(ctx)
	rg.Go(func() error {
		var err error
		grid, err = resample.Heights(rctx, heightReq)
		return err
	})
	rg.Go(func() error {
		var err error
		satellite, err = resample.Colors(rctx, center, opts.Resolution, opts.Resolution,
			sampler.NewCanvasColor(satCanvas))
		return err
	})
	if err := rg.Wait(); err != nil {
		return nil, err
	}

	ds := &Dataset{
		HeightMap:      grid.Values,
		Width:          grid.Width,
		Height:         grid.Height,
		MinHeight:      grid.MinHeight,
		MaxHeight:      grid.MaxHeight,
		Bounds:         grid.Bounds,
		SatelliteImage: satellite,
		Source:         source,
		USGSFallback:   usgsFallback,
		Provenance:     prov,
	}

	if opts.IncludeOSM && g.osm != nil {
		report("fetching OSM features")
		// The resampled bounds, not the request bounds: the grid may have
		// snapped slightly.
		features, err := g.osm.FetchFeatures(ctx, grid.Bounds)
		if err != nil {
			if internal.IsCanceled(err) {
				return nil, err
			}
			g.logger.Warn("osm fetch failed, continuing without features", "error", err)
		} else {
			ds.OSMFeatures = features
		}
	}

	if g.textures != nil {
		report("generating textures")
		if err := g.generateTextures(ctx, ds, opts); err != nil {
			return nil, err
		}
	}

	report("terrain dataset complete")
	g.logger.Info("terrain summary",
		"source", ds.Source, "usgs_fallback", ds.USGSFallback,
		"min_height", ds.MinHeight, "max_height", ds.MaxHeight,
		"size", ds.Width)
	return ds, nil
}

// fetchPremium tries the premium elevation sources in priority order:
// GPXZ first, USGS only when GPXZ was not used or failed. Source
// unavailability and fetch failure both mean "try the next source",
// never an error; only cancellation propagates.
func (g *Generator) fetchPremium(ctx context.Context, opts Options, bounds geo.Bounds) (
	premium sampler.Height, prov *Provenance, smooth, usgsFallback bool, err error) {

	if opts.UseGPXZ && opts.GPXZAPIKey != "" {
		gpxz := provider.NewGPXZ(g.cfg, opts.GPXZAPIKey, g.gpxzLimits)
		res, gerr := gpxz.FetchArea(ctx, bounds)
		switch {
		case gerr == nil:
			premium = sampler.NewRasterHeight(res.Rasters)
			prov = &Provenance{Source: internal.ProviderGPXZ, Archives: res.Raw}
			smooth = res.Smooth
		case internal.IsCanceled(gerr):
			return nil, nil, false, false, gerr
		default:
			g.logger.Warn("gpxz failed, trying next source", "error", gerr)
		}
	}

	if opts.UseUSGS {
		if premium == nil && g.usgs.Covers(bounds) {
			res, uerr := g.usgs.FetchArea(ctx, bounds)
			switch {
			case uerr == nil:
				premium = sampler.NewRasterHeight(res.Rasters)
				prov = &Provenance{Source: internal.ProviderUSGS, Archives: res.Raw}
			case internal.IsCanceled(uerr):
				return nil, nil, false, false, uerr
			default:
				g.logger.Warn("usgs failed, falling back to baseline", "error", uerr)
				usgsFallback = true
			}
		} else if prov == nil || prov.Source != internal.ProviderUSGS {
			// Requested but not attempted (out of geofence, or GPXZ won).
			usgsFallback = true
		}
	}
	return premium, prov, smooth, usgsFallback, nil
}

func (g *Generator) generateTextures(ctx context.Context, ds *Dataset, opts Options) error {
	textures := &Textures{}
	run := func(name string, fn func() (*image.RGBA, error)) error {
		img, err := fn()
		if err != nil {
			if internal.IsCanceled(err) {
				return err
			}
			g.logger.Warn("texture generation failed", "texture", name, "error", err)
			return nil
		}
		switch name {
		case "osm":
			textures.OSM = img
		case "hybrid":
			textures.Hybrid = img
		case "segmented":
			textures.Segmented = img
		case "segmented-hybrid":
			textures.SegmentedHybrid = img
		}
		return nil
	}

	steps := []struct {
		name string
		fn   func() (*image.RGBA, error)
	}{
		{"osm", func() (*image.RGBA, error) { return g.textures.GenerateOSMTexture(ctx, ds, opts.BaseColor) }},
		{"hybrid", func() (*image.RGBA, error) { return g.textures.GenerateHybridTexture(ctx, ds, opts.BaseColor) }},
		{"segmented", func() (*image.RGBA, error) { return g.textures.SegmentSatelliteTexture(ctx, ds.SatelliteImage) }},
		{"segmented-hybrid", func() (*image.RGBA, error) {
			return g.textures.GenerateSegmentedHybridTexture(ctx, ds, opts.BaseColor)
		}},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := run(step.name, step.fn); err != nil {
			return err
		}
	}
	ds.Textures = textures
	return nil
}
