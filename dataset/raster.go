package dataset

import "fmt"

// Raster reshapes a flattened digit image into its 28x28 row-major raster
// for visual inspection.
func Raster(v []float64) ([][]float64, error) {
	if len(v) != ImageDim {
		return nil, fmt.Errorf("raster input has %d values, want %d: %w",
			len(v), ImageDim, ErrDimensionMismatch)
	}
	rows := make([][]float64, ImageSide)
	for i := range rows {
		rows[i] = v[i*ImageSide : (i+1)*ImageSide]
	}
	return rows, nil
}
