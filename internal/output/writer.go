// internal/output/writer.go - Dataset output writing
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"terrain-tiler/internal/terrain"
)

// Writer persists parts of a terrain dataset to files.
type Writer interface {
	Write(ds *terrain.Dataset, path string) error
}

// WriteAll writes the heightmap and satellite texture of a dataset into
// a directory using the given file names.
func WriteAll(ds *terrain.Dataset, dir, heightmapName, textureName string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := NewASCIIGridWriter().Write(ds, filepath.Join(dir, heightmapName)); err != nil {
		return fmt.Errorf("failed to write heightmap: %w", err)
	}
	if ds.SatelliteImage != nil {
		if err := NewPNGWriter().Write(ds, filepath.Join(dir, textureName)); err != nil {
			return fmt.Errorf("failed to write satellite texture: %w", err)
		}
	}
	return nil
}
