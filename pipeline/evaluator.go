package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"digitmix/dataset"
)

// Metrics is the evaluation summary of one prediction batch.
type Metrics struct {
	Accuracy          float64
	MeanLogLikelihood float64 // NaN when no row had a defined true-class log-probability
	Rows              int
	DefinedRows       int // rows contributing to the mean log-likelihood
}

// Score compares predictions against ground truth. Accuracy counts exact
// one-hot row matches. The mean log-likelihood averages the predicted
// log-probability at the true class over rows where it is defined; NaN
// (Undefined) entries are excluded from the mean, never counted as zero.
func Score(trueOneHot, predOneHot, logProbs *mat.Dense) (Metrics, error) {
	n, c := trueOneHot.Dims()
	if pn, pc := predOneHot.Dims(); pn != n || pc != c {
		return Metrics{}, fmt.Errorf("predictions are %dx%d, truth is %dx%d: %w",
			pn, pc, n, c, dataset.ErrDimensionMismatch)
	}
	if ln, lc := logProbs.Dims(); ln != n || lc != c {
		return Metrics{}, fmt.Errorf("log-probabilities are %dx%d, truth is %dx%d: %w",
			ln, lc, n, c, dataset.ErrDimensionMismatch)
	}

	correct := 0
	llSum := 0.0
	defined := 0
	for i := 0; i < n; i++ {
		truth := trueOneHot.RawRowView(i)
		pred := predOneHot.RawRowView(i)
		match := true
		for j := 0; j < c; j++ {
			if truth[j] != pred[j] {
				match = false
				break
			}
		}
		if match {
			correct++
		}

		ll := logProbs.At(i, dataset.ArgmaxRow(truth))
		if !math.IsNaN(ll) {
			llSum += ll
			defined++
		}
	}

	m := Metrics{
		Accuracy:    float64(correct) / float64(n),
		Rows:        n,
		DefinedRows: defined,
	}
	if defined > 0 {
		m.MeanLogLikelihood = llSum / float64(defined)
	} else {
		m.MeanLogLikelihood = math.NaN()
	}
	return m, nil
}
