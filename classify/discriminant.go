// Package classify implements a quadratic class-conditional Gaussian
// classifier: one mean and covariance per class, combined with class priors
// under Bayes' rule.
package classify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"digitmix/dataset"
)

// Config controls fitting.
type Config struct {
	Reg           float64 // covariance floor added to each class diagonal, default 1e-6
	UniformPriors bool    // default is empirical class frequencies
	NumClasses    int     // 0 infers max(label)+1
}

const defaultReg = 1e-6

// Discriminant is a fitted classifier. Parameter fields are plain data so it
// gob-encodes inside a model bundle.
type Discriminant struct {
	Dim     int
	Classes int

	Priors []float64 // Classes
	Means  []float64 // Classes x Dim
	Covs   []float64 // Classes x Dim x Dim

	normals []*distmv.Normal
}

func (d *Discriminant) mean(c int) []float64 {
	return d.Means[c*d.Dim : (c+1)*d.Dim]
}

func (d *Discriminant) cov(c int) []float64 {
	sz := d.Dim * d.Dim
	return d.Covs[c*sz : (c+1)*sz]
}

// Fit estimates one Gaussian per class from the rows of x labeled with that
// class. Every class in [0, NumClasses) must have at least 2 training rows.
func Fit(x *mat.Dense, labels []int, cfg Config) (*Discriminant, error) {
	n, dim := x.Dims()
	if n != len(labels) {
		return nil, fmt.Errorf("%d rows but %d labels: %w",
			n, len(labels), dataset.ErrDimensionMismatch)
	}
	if cfg.Reg <= 0 {
		cfg.Reg = defaultReg
	}
	classes := cfg.NumClasses
	for _, label := range labels {
		if label < 0 {
			return nil, fmt.Errorf("negative class label %d", label)
		}
		if label+1 > classes {
			if cfg.NumClasses > 0 {
				return nil, fmt.Errorf("label %d outside [0,%d)", label, cfg.NumClasses)
			}
			classes = label + 1
		}
	}
	if classes < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", classes)
	}

	d := &Discriminant{
		Dim:     dim,
		Classes: classes,
		Priors:  make([]float64, classes),
		Means:   make([]float64, classes*dim),
		Covs:    make([]float64, classes*dim*dim),
	}

	counts := make([]int, classes)
	for i, label := range labels {
		counts[label]++
		mu := d.mean(label)
		row := x.RawRowView(i)
		for j := 0; j < dim; j++ {
			mu[j] += row[j]
		}
	}
	for c := 0; c < classes; c++ {
		if counts[c] < 2 {
			return nil, fmt.Errorf("class %d has %d training rows, need at least 2", c, counts[c])
		}
		mu := d.mean(c)
		for j := 0; j < dim; j++ {
			mu[j] /= float64(counts[c])
		}
		if cfg.UniformPriors {
			d.Priors[c] = 1 / float64(classes)
		} else {
			d.Priors[c] = float64(counts[c]) / float64(n)
		}
	}

	for i, label := range labels {
		row := x.RawRowView(i)
		mu := d.mean(label)
		cov := d.cov(label)
		for a := 0; a < dim; a++ {
			da := row[a] - mu[a]
			for b := a; b < dim; b++ {
				cov[a*dim+b] += da * (row[b] - mu[b])
			}
		}
	}
	for c := 0; c < classes; c++ {
		cov := d.cov(c)
		for a := 0; a < dim; a++ {
			for b := a; b < dim; b++ {
				v := cov[a*dim+b] / float64(counts[c])
				cov[a*dim+b] = v
				cov[b*dim+a] = v
			}
			cov[a*dim+a] += cfg.Reg
		}
	}

	if err := d.ensureNormals(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Discriminant) ensureNormals() error {
	if d.normals != nil {
		return nil
	}
	normals := make([]*distmv.Normal, d.Classes)
	for c := 0; c < d.Classes; c++ {
		norm, err := normalFromCov(d.mean(c), d.Dim, d.cov(c))
		if err != nil {
			return fmt.Errorf("class %d: %w", c, err)
		}
		normals[c] = norm
	}
	d.normals = normals
	return nil
}

func normalFromCov(mean []float64, dim int, cov []float64) (*distmv.Normal, error) {
	jitter := 0.0
	for attempt := 0; attempt < 7; attempt++ {
		data := make([]float64, len(cov))
		copy(data, cov)
		for j := 0; j < dim; j++ {
			data[j*dim+j] += jitter
		}
		if norm, ok := distmv.NewNormal(mean, mat.NewSymDense(dim, data), nil); ok {
			return norm, nil
		}
		if jitter == 0 {
			jitter = 1e-9
		} else {
			jitter *= 100
		}
	}
	return nil, fmt.Errorf("covariance is numerically singular")
}

// jointLogProbs fills buf with log P(class) + log N(row | class).
func (d *Discriminant) jointLogProbs(row, buf []float64) {
	for c := 0; c < d.Classes; c++ {
		buf[c] = math.Log(d.Priors[c]) + d.normals[c].LogProb(row)
	}
}

// Predict returns the maximum-posterior class of each row.
func (d *Discriminant) Predict(x *mat.Dense) ([]int, error) {
	n, dim := x.Dims()
	if dim != d.Dim {
		return nil, fmt.Errorf("input has %d columns, classifier expects %d: %w",
			dim, d.Dim, dataset.ErrDimensionMismatch)
	}
	if err := d.ensureNormals(); err != nil {
		return nil, err
	}
	buf := make([]float64, d.Classes)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		d.jointLogProbs(x.RawRowView(i), buf)
		out[i] = floats.MaxIdx(buf)
	}
	return out, nil
}

// PredictLogProba returns the N x Classes matrix of class log-posteriors.
// A class whose posterior underflows to zero mass comes back as -Inf; it is
// never a NaN and never raises.
func (d *Discriminant) PredictLogProba(x *mat.Dense) (*mat.Dense, error) {
	n, dim := x.Dims()
	if dim != d.Dim {
		return nil, fmt.Errorf("input has %d columns, classifier expects %d: %w",
			dim, d.Dim, dataset.ErrDimensionMismatch)
	}
	if err := d.ensureNormals(); err != nil {
		return nil, err
	}
	out := mat.NewDense(n, d.Classes, nil)
	buf := make([]float64, d.Classes)
	for i := 0; i < n; i++ {
		d.jointLogProbs(x.RawRowView(i), buf)
		norm := floats.LogSumExp(buf)
		dst := out.RawRowView(i)
		for c := 0; c < d.Classes; c++ {
			v := buf[c] - norm
			if math.IsNaN(v) {
				// -Inf joint against a -Inf normalizer: structurally no mass
				v = math.Inf(-1)
			}
			dst[c] = v
		}
	}
	return out, nil
}
