// internal/output/formatter.go - Heightmap and texture encoders
package output

import (
	"bufio"
	"fmt"
	"image/png"
	"os"

	"terrain-tiler/internal/resample"
	"terrain-tiler/internal/terrain"
)

// ASCIIGridWriter encodes the heightmap as an ESRI ASCII grid. The
// NODATA value matches the pipeline's sentinel so downstream GIS tools
// recognize unsampled cells.
type ASCIIGridWriter struct{}

func NewASCIIGridWriter() *ASCIIGridWriter {
	return &ASCIIGridWriter{}
}

func (w *ASCIIGridWriter) Write(ds *terrain.Dataset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	cellSize := ds.Bounds.WidthDegrees() / float64(ds.Width)
	fmt.Fprintf(bw, "ncols %d\n", ds.Width)
	fmt.Fprintf(bw, "nrows %d\n", ds.Height)
	fmt.Fprintf(bw, "xllcorner %f\n", ds.Bounds.West)
	fmt.Fprintf(bw, "yllcorner %f\n", ds.Bounds.South)
	fmt.Fprintf(bw, "cellsize %f\n", cellSize)
	fmt.Fprintf(bw, "NODATA_value %d\n", int(resample.NoData))

	for row := 0; row < ds.Height; row++ {
		for col := 0; col < ds.Width; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			fmt.Fprintf(bw, "%.2f", ds.HeightMap[row*ds.Width+col])
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// PNGWriter encodes the satellite texture as a PNG file.
type PNGWriter struct{}

func NewPNGWriter() *PNGWriter {
	return &PNGWriter{}
}

func (w *PNGWriter) Write(ds *terrain.Dataset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, ds.SatelliteImage)
}
