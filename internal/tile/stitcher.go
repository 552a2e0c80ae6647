// internal/tile/stitcher.go - Covering-range computation and tile compositing
package tile

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"terrain-tiler/internal"
	"terrain-tiler/internal/geo"
)

// Stitch fetches every tile covering the bounds at the given zoom with
// bounded parallelism and composites them into one contiguous raster.
// Tiles that fail to load are flat-filled rather than failing the whole
// stitch; the stitch errors only when zero tiles succeed or the context
// is canceled.
func (f *Fetcher) Stitch(ctx context.Context, b geo.Bounds, zoom int, kind Kind) (*Canvas, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := 1 << uint(zoom)
	nw := maptile.At(orb.Point{b.West, b.North}, maptile.Zoom(zoom))
	se := maptile.At(orb.Point{b.East, b.South}, maptile.Zoom(zoom))
	minX, minY := int(nw.X), int(nw.Y)
	maxX, maxY := int(se.X), int(se.Y)
	if b.CrossesAntimeridian() {
		// Tile columns continue past the antimeridian; X indices are
		// wrapped modulo 2^zoom when fetching.
		maxX += n
	}

	cols := maxX - minX + 1
	rows := maxY - minY + 1
	dst := image.NewRGBA(image.Rect(0, 0, cols*geo.TileSize, rows*geo.TileSize))
	fill := elevationFill
	if kind == KindSatellite {
		fill = satelliteFill
	}

	var succeeded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Tiles.Concurrency)

	for ty := minY; ty <= maxY; ty++ {
		for tx := minX; tx <= maxX; tx++ {
			tx, ty := tx, ty
			g.Go(func() error {
				rect := image.Rect(
					(tx-minX)*geo.TileSize, (ty-minY)*geo.TileSize,
					(tx-minX+1)*geo.TileSize, (ty-minY+1)*geo.TileSize,
				)
				if ty < 0 || ty >= n {
					xdraw.Draw(dst, rect, image.NewUniform(fill), image.Point{}, xdraw.Src)
					return nil
				}

				wrappedX := ((tx % n) + n) % n
				img, err := f.fetchTile(gctx, kind, zoom, wrappedX, ty)
				if err != nil {
					if internal.IsCanceled(err) {
						return err
					}
					f.logger.Warn("tile failed, filling flat",
						"kind", kind, "zoom", zoom, "x", wrappedX, "y", ty, "error", err)
					xdraw.Draw(dst, rect, image.NewUniform(fill), image.Point{}, xdraw.Src)
					return nil
				}

				if img.Bounds().Dx() == geo.TileSize && img.Bounds().Dy() == geo.TileSize {
					xdraw.Draw(dst, rect, img, img.Bounds().Min, xdraw.Src)
				} else {
					xdraw.ApproxBiLinear.Scale(dst, rect, img, img.Bounds(), xdraw.Src, nil)
				}
				succeeded.Add(1)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if succeeded.Load() == 0 {
		return nil, internal.NewError(internal.ErrorCodeProvider, "no tiles could be fetched", nil)
	}

	f.logger.Debug("stitch complete",
		"kind", kind, "zoom", zoom, "tiles", cols*rows, "fetched", succeeded.Load())
	return &Canvas{Image: dst, MinX: minX, MinY: minY, Zoom: zoom}, nil
}
