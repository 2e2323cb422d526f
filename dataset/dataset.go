package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	// ImageDim is the flattened length of one digit image.
	ImageDim = 784
	// ImageSide is the side of the square raster an image unpacks to.
	ImageSide = 28
	// NumClasses is the number of digit classes.
	NumClasses = 10
)

// ErrDimensionMismatch is returned whenever a vector or matrix enters the
// pipeline with the wrong width. Dimension errors are fatal to the batch
// operation; data is never truncated or padded to fit.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Array is a dense row-major float matrix as stored in container files.
type Array struct {
	Rows int
	Cols int
	Data []float64
}

// NewArray wraps row-major data without copying.
func NewArray(rows, cols int, data []float64) (Array, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return Array{}, fmt.Errorf("array %dx%d does not match %d values: %w",
			rows, cols, len(data), ErrDimensionMismatch)
	}
	return Array{Rows: rows, Cols: cols, Data: data}, nil
}

// FromDense copies a gonum matrix into an Array.
func FromDense(m *mat.Dense) Array {
	r, c := m.Dims()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		copy(data[i*c:(i+1)*c], m.RawRowView(i))
	}
	return Array{Rows: r, Cols: c, Data: data}
}

// Matrix returns a gonum view over the array data. The view shares the
// backing slice.
func (a Array) Matrix() *mat.Dense {
	if a.Rows == 0 || a.Cols == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(a.Rows, a.Cols, a.Data)
}

// Row returns row i without copying.
func (a Array) Row(i int) []float64 {
	return a.Data[i*a.Cols : (i+1)*a.Cols]
}

// Validate checks internal consistency and, when wantCols > 0, the column
// count.
func (a Array) Validate(wantCols int) error {
	if len(a.Data) != a.Rows*a.Cols {
		return fmt.Errorf("array %dx%d holds %d values: %w",
			a.Rows, a.Cols, len(a.Data), ErrDimensionMismatch)
	}
	if wantCols > 0 && a.Cols != wantCols {
		return fmt.Errorf("array has %d columns, want %d: %w",
			a.Cols, wantCols, ErrDimensionMismatch)
	}
	return nil
}
