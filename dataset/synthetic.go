package dataset

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Blobs samples an isotropic Gaussian blob dataset: perClass points around
// each center, labeled by center index. Labels come back one-hot over
// len(centers) classes. Sampling is deterministic for a fixed seed.
func Blobs(seed uint64, centers [][]float64, perClass int, sigma float64) (x, y *mat.Dense, err error) {
	if len(centers) == 0 || perClass <= 0 {
		return nil, nil, fmt.Errorf("blobs: need at least one center and a positive count")
	}
	dim := len(centers[0])
	for i, c := range centers {
		if len(c) != dim {
			return nil, nil, fmt.Errorf("blobs: center %d has %d values, want %d: %w",
				i, len(c), dim, ErrDimensionMismatch)
		}
	}

	noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewSource(seed)}
	n := len(centers) * perClass
	x = mat.NewDense(n, dim, nil)
	labels := make([]int, n)
	for class, center := range centers {
		for p := 0; p < perClass; p++ {
			i := class*perClass + p
			row := x.RawRowView(i)
			for j := 0; j < dim; j++ {
				row[j] = center[j] + noise.Rand()
			}
			labels[i] = class
		}
	}
	y, err = OneHot(labels, len(centers))
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
