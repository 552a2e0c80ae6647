// internal/config/validation.go - Configuration validation
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the configuration structure and values
func Validate(config *Config) error {
	if err := validateProviders(&config.Providers); err != nil {
		return fmt.Errorf("providers configuration invalid: %w", err)
	}

	if err := validateTiles(&config.Tiles); err != nil {
		return fmt.Errorf("tiles configuration invalid: %w", err)
	}

	if err := validateNetwork(&config.Network); err != nil {
		return fmt.Errorf("network configuration invalid: %w", err)
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging configuration invalid: %w", err)
	}

	return nil
}

// validateProviders validates elevation provider configuration parameters
func validateProviders(config *ProvidersConfig) error {
	if config.GPXZ.BaseURL == "" {
		return fmt.Errorf("gpxz base_url is required")
	}
	if _, err := url.Parse(config.GPXZ.BaseURL); err != nil {
		return fmt.Errorf("invalid gpxz base_url: %w", err)
	}
	if config.GPXZ.MaxRetry <= 0 {
		return fmt.Errorf("gpxz max_retry must be positive")
	}

	if config.USGS.ProductURL == "" {
		return fmt.Errorf("usgs product_url is required")
	}
	if _, err := url.Parse(config.USGS.ProductURL); err != nil {
		return fmt.Errorf("invalid usgs product_url: %w", err)
	}
	if config.USGS.QueryTimeout <= 0 {
		return fmt.Errorf("usgs query_timeout must be positive")
	}
	if config.USGS.MaxProducts <= 0 {
		return fmt.Errorf("usgs max_products must be positive")
	}

	return nil
}

// validateTiles validates tile service configuration parameters
func validateTiles(config *TilesConfig) error {
	for name, template := range map[string]string{
		"elevation_url": config.ElevationURL,
		"satellite_url": config.SatelliteURL,
	} {
		if template == "" {
			return fmt.Errorf("%s is required", name)
		}
		for _, placeholder := range []string{"{z}", "{x}", "{y}"} {
			if !strings.Contains(template, placeholder) {
				return fmt.Errorf("%s must contain %s", name, placeholder)
			}
		}
	}

	if config.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if config.Concurrency > 64 {
		return fmt.Errorf("concurrency must not exceed 64")
	}
	if config.MaxZoom < 0 || config.MaxZoom > 22 {
		return fmt.Errorf("max_zoom must be between 0 and 22")
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	return nil
}

// validateNetwork validates network configuration parameters
func validateNetwork(config *NetworkConfig) error {
	if config.ProxyURL != "" {
		if _, err := url.Parse(config.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy_url: %w", err)
		}
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if config.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns must be non-negative")
	}

	return nil
}

// validateLogging validates logging configuration parameters
func validateLogging(config *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(config.Level)) {
		return fmt.Errorf("invalid level: %s, must be one of %v", config.Level, validLevels)
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, strings.ToLower(config.Format)) {
		return fmt.Errorf("invalid format: %s, must be one of %v", config.Format, validFormats)
	}

	return nil
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
