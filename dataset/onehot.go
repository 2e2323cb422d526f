package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// OneHot encodes integer class labels as an N x classes matrix with a single
// 1 per row.
func OneHot(labels []int, classes int) (*mat.Dense, error) {
	out := mat.NewDense(len(labels), classes, nil)
	for i, label := range labels {
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("label %d out of range [0,%d): %w",
				label, classes, ErrDimensionMismatch)
		}
		out.Set(i, label, 1)
	}
	return out, nil
}

// Labels decodes a one-hot matrix back to integer labels by row argmax.
func Labels(oneHot *mat.Dense) []int {
	n, _ := oneHot.Dims()
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		labels[i] = ArgmaxRow(oneHot.RawRowView(i))
	}
	return labels
}

// ArgmaxRow returns the index of the largest value, first index on ties.
func ArgmaxRow(row []float64) int {
	best := 0
	for j := 1; j < len(row); j++ {
		if row[j] > row[best] {
			best = j
		}
	}
	return best
}
