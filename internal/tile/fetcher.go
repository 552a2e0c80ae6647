// internal/tile/fetcher.go - HTTP tile fetching with retry and disk cache
package tile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"terrain-tiler/internal"
	"terrain-tiler/internal/config"
	"terrain-tiler/internal/logging"
)

// Fetcher retrieves map tiles from the configured global tile services.
type Fetcher struct {
	client   *http.Client
	cfg      *config.Config
	cacheDir string
	logger   *slog.Logger
}

// NewFetcher creates a tile fetcher with a connection pool sized for the
// configured concurrency.
func NewFetcher(cfg *config.Config) *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Network.MaxIdleConns,
		IdleConnTimeout:     cfg.Network.IdleConnTimeout,
		DisableKeepAlives:   cfg.Network.DisableKeepAlive,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxConnsPerHost:     cfg.Tiles.Concurrency,
	}

	if cfg.Network.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.Network.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Network.Timeout,
			Transport: transport,
		},
		cfg:      cfg,
		cacheDir: cfg.Tiles.CacheDir,
		logger:   logging.L(),
	}
}

// buildTileURL expands the configured URL template for a tile.
func (f *Fetcher) buildTileURL(kind Kind, zoom, x, y int) string {
	template := f.cfg.Tiles.ElevationURL
	if kind == KindSatellite {
		template = f.cfg.Tiles.SatelliteURL
	}
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(zoom),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	)
	return r.Replace(template)
}

// fetchTile retrieves and decodes one tile, trying the disk cache first.
// Transient failures are retried with a quadratic backoff; client errors
// such as 404 are returned immediately.
func (f *Fetcher) fetchTile(ctx context.Context, kind Kind, zoom, x, y int) (image.Image, error) {
	if img, ok := f.cacheRead(kind, zoom, x, y); ok {
		return img, nil
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.Tiles.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt*attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		data, retryable, err := f.fetchOnce(ctx, kind, zoom, x, y)
		if err == nil {
			img, _, decodeErr := image.Decode(bytes.NewReader(data))
			if decodeErr != nil {
				lastErr = internal.NewError(internal.ErrorCodeDecode, "tile decode failed", decodeErr)
				continue
			}
			f.cacheWrite(kind, zoom, x, y, data)
			return img, nil
		}
		lastErr = err
		if internal.IsCanceled(err) || !retryable {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, kind Kind, zoom, x, y int) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.buildTileURL(kind, zoom, x, y), nil)
	if err != nil {
		return nil, false, internal.NewError(internal.ErrorCodeValidation, "failed to build tile request", err)
	}
	req.Header.Set("User-Agent", f.cfg.Network.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, internal.NewError(internal.ErrorCodeNetwork, "tile request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := internal.NewError(internal.ErrorCodeNetwork, fmt.Sprintf("tile HTTP %d", resp.StatusCode), nil)
		// 4xx responses will not improve on retry.
		return nil, resp.StatusCode >= 500, err
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, internal.NewError(internal.ErrorCodeNetwork, "failed to read tile body", err)
	}
	return data, false, nil
}

func (f *Fetcher) cachePath(kind Kind, zoom, x, y int) string {
	return filepath.Join(f.cacheDir, string(kind), strconv.Itoa(zoom), strconv.Itoa(x), strconv.Itoa(y))
}

func (f *Fetcher) cacheRead(kind Kind, zoom, x, y int) (image.Image, bool) {
	if f.cacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(f.cachePath(kind, zoom, x, y))
	if err != nil {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	return img, true
}

func (f *Fetcher) cacheWrite(kind Kind, zoom, x, y int, data []byte) {
	if f.cacheDir == "" {
		return
	}
	path := f.cachePath(kind, zoom, x, y)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		f.logger.Debug("tile cache write failed", "path", path, "error", err)
	}
}
