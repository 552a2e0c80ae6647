// cmd/fetch.go - Fetch command implementation
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"terrain-tiler/internal"
	"terrain-tiler/internal/config"
	"terrain-tiler/internal/geo"
	"terrain-tiler/internal/logging"
	"terrain-tiler/internal/output"
	"terrain-tiler/internal/terrain"
)

var (
	fetchLat        float64
	fetchLng        float64
	fetchResolution int
	fetchIncludeOSM bool
	fetchOutputDir  string
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a terrain dataset around a center point",
	Long: `Fetch elevation and satellite imagery around a center coordinate and
resample both onto a metric grid of exactly 1 meter per pixel.

The resolution flag sets both the grid size in pixels and the covered
extent in meters: --resolution 1000 produces a 1000x1000 heightmap
covering 1 km x 1 km. Elevation sources are tried in priority order
(GPXZ, then USGS inside US coverage, then the global baseline); the
satellite texture always comes from the global imagery tile set.

Examples:
  terrain-tiler fetch --lat 46.55 --lng 8.56 --resolution 1000
  terrain-tiler fetch --lat 39.74 --lng -105.0 --resolution 2000 --gpxz-key KEY -o ./out`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().Float64Var(&fetchLat, "lat", 0, "center latitude in degrees (required)")
	fetchCmd.Flags().Float64Var(&fetchLng, "lng", 0, "center longitude in degrees (required)")
	fetchCmd.Flags().IntVar(&fetchResolution, "resolution", 1000, "output size in pixels and extent in meters")
	fetchCmd.Flags().BoolVar(&fetchIncludeOSM, "include-osm", false, "fetch OpenStreetMap features for the final bounds")
	fetchCmd.Flags().StringVarP(&fetchOutputDir, "output", "o", "", "output directory (default from config)")

	fetchCmd.MarkFlagRequired("lat")
	fetchCmd.MarkFlagRequired("lng")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if fetchLat < -90 || fetchLat > 90 {
		return internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("latitude %f outside [-90, 90]", fetchLat), nil)
	}

	outDir := cfg.Output.Directory
	if fetchOutputDir != "" {
		outDir = fetchOutputDir
	}

	// Ctrl-C cancels the pipeline; a cancelled run reports as cancelled,
	// never as a provider failure.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := terrain.Options{
		Center:     geo.LatLng{Lat: fetchLat, Lng: fetchLng},
		Resolution: fetchResolution,
		IncludeOSM: fetchIncludeOSM,
		UseGPXZ:    cfg.Providers.GPXZ.Enabled,
		UseUSGS:    cfg.Providers.USGS.Enabled,
		GPXZAPIKey: cfg.Providers.GPXZ.APIKey,
	}

	if cfg.Logging.Progress {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetDescription("starting"),
			progressbar.OptionSetElapsedTime(true),
		)
		opts.Progress = func(message string) {
			bar.Describe(message)
			bar.Add(1)
		}
		defer func() {
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}()
	}

	start := time.Now()
	generator := terrain.NewGenerator(cfg, nil, nil)
	ds, err := generator.Generate(ctx, opts)
	if err != nil {
		if internal.IsCanceled(err) {
			return fmt.Errorf("terrain fetch cancelled")
		}
		return fmt.Errorf("terrain fetch failed: %w", err)
	}

	if err := output.WriteAll(ds, outDir, cfg.Output.Heightmap, cfg.Output.Texture); err != nil {
		return err
	}

	fmt.Printf("Terrain dataset written to %s\n", outDir)
	fmt.Printf("  source:     %s\n", ds.Source)
	if ds.USGSFallback {
		fmt.Printf("  note:       usgs requested but unavailable, baseline used\n")
	}
	fmt.Printf("  size:       %dx%d (1 m/px)\n", ds.Width, ds.Height)
	fmt.Printf("  height:     %.1f m to %.1f m\n", ds.MinHeight, ds.MaxHeight)
	fmt.Printf("  bounds:     N %.5f S %.5f E %.5f W %.5f\n",
		ds.Bounds.North, ds.Bounds.South, ds.Bounds.East, ds.Bounds.West)
	if ds.OSMFeatures != nil {
		fmt.Printf("  features:   %d\n", len(ds.OSMFeatures))
	}
	fmt.Printf("  elapsed:    %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
