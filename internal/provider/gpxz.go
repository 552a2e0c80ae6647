// internal/provider/gpxz.go - GPXZ high-resolution elevation adapter
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"terrain-tiler/internal"
	"terrain-tiler/internal/config"
	"terrain-tiler/internal/geo"
	"terrain-tiler/internal/geotiff"
	"terrain-tiler/internal/logging"
)

const (
	// The provider enforces a ~10 km² per-request area ceiling. Chunks of
	// 2.6 km per side plus the 220 m overlap buffer stay safely under it.
	gpxzAreaCeilingKm2    = 10.0
	gpxzChunkSideMeters   = 2600.0
	gpxzChunkBufferMeters = 220.0

	// Native resolutions coarser than this produce visible terracing at
	// 1 m output resolution and get a post-resample smoothing pass.
	gpxzCoarseResolution = 2.0
)

// GPXZResult is the outcome of a GPXZ area fetch. Raw retains the
// undecoded GeoTIFF bytes for provenance and re-export.
type GPXZResult struct {
	Rasters []*geotiff.Raster
	Raw     [][]byte
	Smooth  bool
}

// GPXZ queries the GPXZ REST API for high-resolution elevation rasters,
// chunking oversized requests and pacing them to the discovered plan
// tier.
type GPXZ struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limits  *RateLimitState
	decode  geotiff.Decoder
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewGPXZ creates the adapter. The rate-limit state is injected so the
// owner controls its lifetime and tests get isolated instances.
func NewGPXZ(cfg *config.Config, apiKey string, limits *RateLimitState) *GPXZ {
	return &GPXZ{
		client:  &http.Client{Timeout: cfg.Network.Timeout},
		baseURL: cfg.Providers.GPXZ.BaseURL,
		apiKey:  apiKey,
		limits:  limits,
		decode:  geotiff.Decode,
		retry: RetryPolicy{
			MaxAttempts: cfg.Providers.GPXZ.MaxRetry,
			BaseDelay:   2 * time.Second,
			Retryable:   isRetryable,
		},
		logger: logging.L(),
	}
}

// Available reports whether the adapter can be used at all.
func (g *GPXZ) Available() bool {
	return g.apiKey != ""
}

// FetchArea retrieves elevation rasters covering the bounds. Chunks that
// exhaust their retries are dropped; the fetch succeeds if at least one
// chunk succeeded and reports failure only when all of them are lost.
func (g *GPXZ) FetchArea(ctx context.Context, bounds geo.Bounds) (*GPXZResult, error) {
	if !g.Available() {
		return nil, internal.NewError(internal.ErrorCodeValidation, "gpxz api key not configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !g.limits.Probed() {
		g.probe(ctx, bounds.Center())
	}

	smooth, err := g.checkResolution(ctx, bounds.Center())
	if err != nil {
		if internal.IsCanceled(err) {
			return nil, err
		}
		// A failed resolution probe is not fatal; proceed unsmoothed.
		g.logger.Warn("gpxz resolution check failed", "error", err)
	}

	chunks := geo.Chunk(bounds, gpxzChunkSideMeters, gpxzChunkBufferMeters)
	limiter := g.limits.Limiter()
	policy := g.limits.CurrentTier().Policy()

	raw := make([][]byte, len(chunks))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(policy.Concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		eg.Go(func() error {
			data, err := Do(gctx, g.retry, func(ctx context.Context) ([]byte, error) {
				if err := limiter.Wait(ctx); err != nil {
					return nil, err
				}
				return g.fetchChunk(ctx, chunk)
			})
			if err != nil {
				if internal.IsCanceled(err) {
					return err
				}
				g.logger.Warn("gpxz chunk dropped", "chunk", i, "error", err)
				return nil
			}
			raw[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &GPXZResult{Smooth: smooth}
	for i, data := range raw {
		if data == nil {
			continue
		}
		raster, err := g.decode(data)
		if err != nil {
			g.logger.Warn("gpxz chunk decode failed", "chunk", i, "error", err)
			continue
		}
		result.Rasters = append(result.Rasters, raster)
		result.Raw = append(result.Raw, data)
	}
	if len(result.Rasters) == 0 {
		return nil, internal.NewError(internal.ErrorCodeProvider, "all gpxz chunks failed", nil)
	}

	g.logger.Info("gpxz fetch complete",
		"chunks", len(chunks), "succeeded", len(result.Rasters), "smooth", result.Smooth)
	return result, nil
}

// probe issues one lightweight point request to discover the plan tier.
// Probe failure leaves the state at the conservative free tier.
func (g *GPXZ) probe(ctx context.Context, at geo.LatLng) {
	defer g.limits.MarkProbed()
	if _, err := g.pointLookup(ctx, at); err != nil {
		g.logger.Warn("gpxz probe failed, assuming free tier", "error", err)
		return
	}
	g.logger.Debug("gpxz probe complete", "tier", g.limits.CurrentTier())
}

// checkResolution reports whether the provider's native resolution at
// the point is coarse enough to warrant post-resample smoothing.
func (g *GPXZ) checkResolution(ctx context.Context, at geo.LatLng) (bool, error) {
	res, err := g.pointLookup(ctx, at)
	if err != nil {
		return false, err
	}
	return res > gpxzCoarseResolution, nil
}

type gpxzPointResponse struct {
	Results []struct {
		Elevation  float64 `json:"elevation"`
		Resolution float64 `json:"resolution"`
		DataSource string  `json:"data_source"`
	} `json:"results"`
	Status string `json:"status"`
}

func (g *GPXZ) pointLookup(ctx context.Context, at geo.LatLng) (resolution float64, err error) {
	u := fmt.Sprintf("%s/v1/elevation/points?latlons=%s", g.baseURL,
		url.QueryEscape(fmt.Sprintf("%.6f,%.6f", at.Lat, at.Lng)))
	body, err := g.get(ctx, u)
	if err != nil {
		return 0, err
	}

	var parsed gpxzPointResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, internal.NewError(internal.ErrorCodeDecode, "bad gpxz point response", err)
	}
	if len(parsed.Results) == 0 {
		return 0, internal.NewError(internal.ErrorCodeProvider, "empty gpxz point response", nil)
	}
	return parsed.Results[0].Resolution, nil
}

// fetchChunk downloads one sub-box as a GeoTIFF. The bbox query order is
// south,west,north,east per the provider contract.
func (g *GPXZ) fetchChunk(ctx context.Context, chunk geo.Bounds) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/elevation/hires-raster?bbox=%.6f,%.6f,%.6f,%.6f",
		g.baseURL, chunk.South, chunk.West, chunk.North, chunk.East)
	return g.get(ctx, u)
}

func (g *GPXZ) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeValidation, "failed to build gpxz request", err)
	}
	req.Header.Set("x-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, internal.NewError(internal.ErrorCodeTimeout, "gpxz request timed out", err)
		}
		return nil, internal.NewError(internal.ErrorCodeNetwork, "gpxz request failed", err)
	}
	defer resp.Body.Close()
	g.limits.UpdateFromHeaders(resp.Header)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		var after time.Duration
		if v, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			after = time.Duration(v) * time.Second
		}
		return nil, &RateLimitedError{RetryAfter: after}
	case resp.StatusCode >= 500:
		return nil, internal.NewError(internal.ErrorCodeNetwork,
			fmt.Sprintf("gpxz HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, internal.NewError(internal.ErrorCodeProvider,
			fmt.Sprintf("gpxz HTTP %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeNetwork, "gpxz body read failed", err)
	}
	return body, nil
}

// isRetryable treats rate limits, network errors and timeouts as worth
// another attempt; validation and other provider rejections are not.
func isRetryable(err error) bool {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	var appErr *internal.Error
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case internal.ErrorCodeNetwork, internal.ErrorCodeTimeout, internal.ErrorCodeRateLimit:
			return true
		}
		return false
	}
	return true
}
