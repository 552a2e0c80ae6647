// internal/provider/status.go - Provider reachability probes
package provider

import (
	"context"
	"net/http"
	"time"

	"terrain-tiler/internal/config"
)

// CheckUSGSStatus is a simple reachability probe for the USGS product
// API, intended for UI display. The core fetch path does not consult it:
// it attempts USGS regardless and falls back on failure.
func CheckUSGSStatus(ctx context.Context, cfg *config.Config) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Providers.USGS.ProductURL+"?max=1", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
