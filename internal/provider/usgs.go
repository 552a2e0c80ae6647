// internal/provider/usgs.go - USGS National Map elevation adapter
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
	"time"

	"terrain-tiler/internal"
	"terrain-tiler/internal/config"
	"terrain-tiler/internal/geo"
	"terrain-tiler/internal/geotiff"
	"terrain-tiler/internal/logging"
)

// usgsRegions geofences the adapter: it only has useful coverage inside
// the continental US, Alaska and Hawaii, and must not be invoked
// elsewhere.
var usgsRegions = []geo.Bounds{
	{North: 49.5, South: 24.0, West: -125.5, East: -66.5}, // continental US
	{North: 71.6, South: 51.0, West: -169.0, East: -129.5}, // Alaska
	{North: 22.5, South: 18.5, West: -160.5, East: -154.5}, // Hawaii
}

const usgsDataset = "National Elevation Dataset (NED) 1/3 arc-second"

// USGSResult is the outcome of a USGS area fetch.
type USGSResult struct {
	Rasters []*geotiff.Raster
	Raw     [][]byte
}

// USGS queries the National Map product API for GeoTIFF elevation
// products intersecting a bounding box and downloads them one at a time.
type USGS struct {
	client       *http.Client
	productURL   string
	queryTimeout time.Duration
	maxProducts  int
	decode       geotiff.Decoder
	retry        RetryPolicy
	logger       *slog.Logger
}

func NewUSGS(cfg *config.Config) *USGS {
	return &USGS{
		// No client-wide timeout: product downloads are large and bounded
		// by retry/backoff instead. The query path gets its own deadline.
		client:       &http.Client{},
		productURL:   cfg.Providers.USGS.ProductURL,
		queryTimeout: cfg.Providers.USGS.QueryTimeout,
		maxProducts:  cfg.Providers.USGS.MaxProducts,
		decode:       geotiff.Decode,
		retry: RetryPolicy{
			MaxAttempts: cfg.Providers.USGS.MaxRetry,
			BaseDelay:   time.Second,
			Linear:      true,
			Retryable:   isRetryable,
		},
		logger: logging.L(),
	}
}

// Covers reports whether the bounds fall inside one of the geofenced
// regions. Wrapped boxes are checked piecewise.
func (u *USGS) Covers(bounds geo.Bounds) bool {
	for _, piece := range bounds.SplitAntimeridian() {
		if !coveredByAny(piece) {
			return false
		}
	}
	return true
}

func coveredByAny(b geo.Bounds) bool {
	for _, region := range usgsRegions {
		if b.North <= region.North && b.South >= region.South &&
			b.West >= region.West && b.East <= region.East {
			return true
		}
	}
	return false
}

// FetchArea queries for intersecting products and downloads each one
// sequentially. Downloads are deliberately not concurrent: the files can
// be large and parallel downloads risk memory exhaustion. Individual
// download or parse failures are skipped; zero parsed tiles is failure.
func (u *USGS) FetchArea(ctx context.Context, bounds geo.Bounds) (*USGSResult, error) {
	if !u.Covers(bounds) {
		return nil, internal.NewError(internal.ErrorCodeNotFound, "bounds outside usgs coverage", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	urls, err := u.queryProducts(ctx, bounds)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		// Legitimate "no coverage here", distinct from a network failure;
		// both lead the orchestrator to fall back.
		return nil, internal.NewError(internal.ErrorCodeNotFound, "no usgs products intersect bounds", nil)
	}

	result := &USGSResult{}
	for _, productURL := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := u.download(ctx, productURL)
		if err != nil {
			if internal.IsCanceled(err) {
				return nil, err
			}
			u.logger.Warn("usgs product skipped", "url", productURL, "error", err)
			continue
		}
		raster, err := u.decode(data)
		if err != nil {
			u.logger.Warn("usgs product decode failed", "url", productURL, "error", err)
			continue
		}
		result.Rasters = append(result.Rasters, raster)
		result.Raw = append(result.Raw, data)
	}
	if len(result.Rasters) == 0 {
		return nil, internal.NewError(internal.ErrorCodeProvider, "no usgs products parsed", nil)
	}

	u.logger.Info("usgs fetch complete", "products", len(urls), "parsed", len(result.Rasters))
	return result, nil
}

type usgsProductResponse struct {
	Items []struct {
		Title       string `json:"title"`
		DownloadURL string `json:"downloadURL"`
		Format      string `json:"format"`
	} `json:"items"`
	Total int `json:"total"`
}

// queryProducts asks the product-search API for GeoTIFFs intersecting
// the bounds. The query gets its own timeout, distinct from general
// fetches, because the endpoint has no payload size bound. Failures are
// retried with linear backoff.
func (u *USGS) queryProducts(ctx context.Context, bounds geo.Bounds) ([]string, error) {
	q := url.Values{}
	q.Set("datasets", usgsDataset)
	q.Set("bbox", fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", bounds.West, bounds.South, bounds.East, bounds.North))
	q.Set("prodFormats", "GeoTIFF")
	q.Set("max", fmt.Sprintf("%d", u.maxProducts))
	queryURL := u.productURL + "?" + q.Encode()

	return Do(ctx, u.retry, func(ctx context.Context) ([]string, error) {
		qctx, cancel := context.WithTimeout(ctx, u.queryTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(qctx, http.MethodGet, queryURL, nil)
		if err != nil {
			return nil, internal.NewError(internal.ErrorCodeValidation, "failed to build usgs query", err)
		}
		resp, err := u.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A tripped query deadline is a provider timeout, distinct
			// from pipeline cancellation, and worth another attempt.
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, internal.NewError(internal.ErrorCodeTimeout, "usgs query timed out", err)
			}
			return nil, internal.NewError(internal.ErrorCodeNetwork, "usgs query failed", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			code := internal.ErrorCodeProvider
			if resp.StatusCode >= 500 {
				code = internal.ErrorCodeNetwork
			}
			return nil, internal.NewError(code, fmt.Sprintf("usgs query HTTP %d", resp.StatusCode), nil)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, internal.NewError(internal.ErrorCodeNetwork, "usgs query body read failed", err)
		}
		var parsed usgsProductResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, internal.NewError(internal.ErrorCodeDecode, "bad usgs query response", err)
		}

		urls := make([]string, 0, len(parsed.Items))
		for _, item := range parsed.Items {
			if item.DownloadURL != "" {
				urls = append(urls, item.DownloadURL)
			}
			if len(urls) == u.maxProducts {
				break
			}
		}
		return urls, nil
	})
}

// download fetches one product GeoTIFF. No hard timeout beyond the
// client's: large files legitimately take time, and retry/backoff covers
// the failure modes.
func (u *USGS) download(ctx context.Context, productURL string) ([]byte, error) {
	return Do(ctx, u.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, productURL, nil)
		if err != nil {
			return nil, internal.NewError(internal.ErrorCodeValidation, "failed to build usgs download", err)
		}
		resp, err := u.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, internal.NewError(internal.ErrorCodeTimeout, "usgs download timed out", err)
			}
			return nil, internal.NewError(internal.ErrorCodeNetwork, "usgs download failed", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			code := internal.ErrorCodeProvider
			if resp.StatusCode >= 500 {
				code = internal.ErrorCodeNetwork
			}
			return nil, internal.NewError(code, fmt.Sprintf("usgs download HTTP %d", resp.StatusCode), nil)
		}
		return io.ReadAll(resp.Body)
	})
}
