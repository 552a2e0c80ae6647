// cmd/root.go - Root command implementation
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "terrain-tiler",
	Short: "Produce metric terrain datasets from elevation and imagery services",
	Long: `TerrainTiler builds a consistent terrain dataset around a geographic center
point: a metric-grid heightmap (1 pixel = 1 meter), a matching satellite
texture, and optional OpenStreetMap vector features.

Elevation is reconciled from multiple sources of differing resolution and
reliability. The GPXZ high-resolution service is tried first when an API key
is supplied, then USGS National Map GeoTIFFs inside their US coverage, and a
global terrarium-encoded tile set always serves as baseline, gap filler and
imagery source. Partial provider failures degrade quality instead of failing
the request.

Examples:
  # 1 km x 1 km terrain around a point using only the global baseline
  terrain-tiler fetch --lat 46.55 --lng 8.56 --resolution 1000

  # Prefer GPXZ high-resolution data
  terrain-tiler fetch --lat 46.55 --lng 8.56 --resolution 2000 --gpxz-key KEY

  # Inside the US, allow the USGS source as well
  terrain-tiler fetch --lat 39.74 --lng -105.0 --resolution 1000 --use-usgs

  # Check USGS API reachability
  terrain-tiler status`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.terrain-tiler.yaml)")

	// Provider flags
	rootCmd.PersistentFlags().String("gpxz-key", "", "GPXZ API key (enables the GPXZ source)")
	rootCmd.PersistentFlags().Bool("use-gpxz", true, "try the GPXZ source when a key is configured")
	rootCmd.PersistentFlags().Bool("use-usgs", true, "try the USGS source inside its US coverage")

	// Tile service flags
	rootCmd.PersistentFlags().Int("concurrency", 8, "number of concurrent tile fetch lanes")
	rootCmd.PersistentFlags().String("cache-dir", "", "directory for the on-disk tile cache")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Bool("progress", true, "show progress output")

	// Bind flags to viper
	viper.BindPFlag("providers.gpxz.api_key", rootCmd.PersistentFlags().Lookup("gpxz-key"))
	viper.BindPFlag("providers.gpxz.enabled", rootCmd.PersistentFlags().Lookup("use-gpxz"))
	viper.BindPFlag("providers.usgs.enabled", rootCmd.PersistentFlags().Lookup("use-usgs"))
	viper.BindPFlag("tiles.concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("tiles.cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("logging.progress", rootCmd.PersistentFlags().Lookup("progress"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".terrain-tiler" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".terrain-tiler")
	}

	// Environment variables
	viper.SetEnvPrefix("TERRAIN_TILER")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
