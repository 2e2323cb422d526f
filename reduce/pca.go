// Package reduce implements the PCA dimensionality reducer. The projection
// (mean vector plus orthonormal basis) is learned once at train time and
// applied unchanged at predict time.
package reduce

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"digitmix/dataset"
)

// Projection holds a fitted linear projection. All fields are plain data so
// the value gob-encodes as part of a model bundle.
type Projection struct {
	InputDim  int
	OutputDim int
	Mean      []float64 // column means of the training data
	Basis     []float64 // InputDim x OutputDim principal directions, row-major
}

// Fit learns a projection onto the top dims principal components of x.
func Fit(x *mat.Dense, dims int) (*Projection, error) {
	n, d := x.Dims()
	if dims <= 0 || dims > d {
		return nil, fmt.Errorf("cannot project %d columns onto %d: %w",
			d, dims, dataset.ErrDimensionMismatch)
	}
	if n < 2 {
		return nil, fmt.Errorf("pca needs at least 2 rows, got %d", n)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	if _, k := vecs.Dims(); k < dims {
		return nil, fmt.Errorf("decomposition yielded %d components, want %d", k, dims)
	}

	mean := make([]float64, d)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j := 0; j < d; j++ {
			mean[j] += row[j]
		}
	}
	for j := 0; j < d; j++ {
		mean[j] /= float64(n)
	}

	basis := make([]float64, d*dims)
	for i := 0; i < d; i++ {
		for j := 0; j < dims; j++ {
			basis[i*dims+j] = vecs.At(i, j)
		}
	}
	return &Projection{InputDim: d, OutputDim: dims, Mean: mean, Basis: basis}, nil
}

// Transform centers x by the fitted mean and projects it onto the basis.
func (p *Projection) Transform(x *mat.Dense) (*mat.Dense, error) {
	n, d := x.Dims()
	if d != p.InputDim {
		return nil, fmt.Errorf("input has %d columns, projection expects %d: %w",
			d, p.InputDim, dataset.ErrDimensionMismatch)
	}
	centered := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		src := x.RawRowView(i)
		dst := centered.RawRowView(i)
		for j := 0; j < d; j++ {
			dst[j] = src[j] - p.Mean[j]
		}
	}
	out := mat.NewDense(n, p.OutputDim, nil)
	out.Mul(centered, mat.NewDense(p.InputDim, p.OutputDim, p.Basis))
	return out, nil
}
