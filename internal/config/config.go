// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers"`
	Tiles     TilesConfig     `mapstructure:"tiles"`
	Network   NetworkConfig   `mapstructure:"network"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ProvidersConfig contains elevation provider configuration
type ProvidersConfig struct {
	GPXZ GPXZConfig `mapstructure:"gpxz"`
	USGS USGSConfig `mapstructure:"usgs"`
}

// GPXZConfig configures the GPXZ high-resolution elevation provider
type GPXZConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	MaxRetry int    `mapstructure:"max_retry"`
}

// USGSConfig configures the USGS National Map elevation provider
type USGSConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ProductURL   string        `mapstructure:"product_url"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	MaxProducts  int           `mapstructure:"max_products"`
	MaxRetry     int           `mapstructure:"max_retry"`
}

// TilesConfig contains global tile service configuration
type TilesConfig struct {
	ElevationURL string `mapstructure:"elevation_url"`
	SatelliteURL string `mapstructure:"satellite_url"`
	Concurrency  int    `mapstructure:"concurrency"`
	MaxZoom      int    `mapstructure:"max_zoom"`
	CacheDir     string `mapstructure:"cache_dir"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

// NetworkConfig contains network-related configuration
type NetworkConfig struct {
	ProxyURL         string        `mapstructure:"proxy_url"`
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout  time.Duration `mapstructure:"idle_conn_timeout"`
	DisableKeepAlive bool          `mapstructure:"disable_keep_alive"`
}

// OutputConfig contains output configuration
type OutputConfig struct {
	Directory string `mapstructure:"directory"`
	Heightmap string `mapstructure:"heightmap"`
	Texture   string `mapstructure:"texture"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Progress bool   `mapstructure:"progress"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults configures default values for all configuration options
func setDefaults() {
	// Provider defaults
	viper.SetDefault("providers.gpxz.enabled", true)
	viper.SetDefault("providers.gpxz.base_url", "https://api.gpxz.io")
	viper.SetDefault("providers.gpxz.max_retry", 5)
	viper.SetDefault("providers.usgs.enabled", true)
	viper.SetDefault("providers.usgs.product_url", "https://tnmaccess.nationalmap.gov/api/v1/products")
	viper.SetDefault("providers.usgs.query_timeout", 20*time.Second)
	viper.SetDefault("providers.usgs.max_products", 4)
	viper.SetDefault("providers.usgs.max_retry", 3)

	// Tile service defaults
	viper.SetDefault("tiles.elevation_url", "https://s3.amazonaws.com/elevation-tiles-prod/terrarium/{z}/{x}/{y}.png")
	viper.SetDefault("tiles.satellite_url", "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}")
	viper.SetDefault("tiles.concurrency", 8)
	viper.SetDefault("tiles.max_zoom", 15)
	viper.SetDefault("tiles.max_retries", 2)

	// Network defaults
	viper.SetDefault("network.user_agent", "TerrainTiler/1.0")
	viper.SetDefault("network.timeout", 30*time.Second)
	viper.SetDefault("network.max_idle_conns", 100)
	viper.SetDefault("network.idle_conn_timeout", 90*time.Second)
	viper.SetDefault("network.disable_keep_alive", false)

	// Output defaults
	viper.SetDefault("output.directory", ".")
	viper.SetDefault("output.heightmap", "heightmap.asc")
	viper.SetDefault("output.texture", "satellite.png")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.progress", true)
}
