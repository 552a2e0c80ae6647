// cmd/status.go - Status command implementation
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"terrain-tiler/internal/config"
	"terrain-tiler/internal/logging"
	"terrain-tiler/internal/provider"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check elevation provider reachability",
	Long: `Check whether the configured elevation providers are reachable.

This is an informational probe only: the fetch pipeline never consults
it and attempts each enabled provider regardless, falling back on
failure.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	fmt.Println("Provider status:")

	if cfg.Providers.GPXZ.APIKey != "" {
		fmt.Println("  gpxz:  key configured")
	} else {
		fmt.Println("  gpxz:  no key configured")
	}

	if provider.CheckUSGSStatus(cmd.Context(), cfg) {
		fmt.Println("  usgs:  reachable")
	} else {
		fmt.Println("  usgs:  unreachable")
	}
	return nil
}
