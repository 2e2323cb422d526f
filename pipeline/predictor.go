package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"digitmix/bundle"
	"digitmix/dataset"
)

// Predictor applies a fitted bundle's transformation chain to raw samples.
type Predictor struct {
	b *bundle.Bundle
}

// NewPredictor wraps a loaded bundle.
func NewPredictor(b *bundle.Bundle) *Predictor {
	return &Predictor{b: b}
}

// PredictBatch runs raw samples through reduce -> cluster-assign -> augment
// -> classify. It returns one-hot predictions (each row sums to exactly 1)
// and the parallel matrix of class log-probabilities, with zero-mass -Inf
// entries replaced by NaN, the designated Undefined marker.
func (p *Predictor) PredictBatch(raw *mat.Dense) (oneHot, logProbs *mat.Dense, err error) {
	_, d := raw.Dims()
	if d != p.b.Projection.InputDim {
		return nil, nil, fmt.Errorf("raw samples have %d columns, model expects %d: %w",
			d, p.b.Projection.InputDim, dataset.ErrDimensionMismatch)
	}

	reduced, err := p.b.Projection.Transform(raw)
	if err != nil {
		return nil, nil, err
	}
	features := reduced
	if p.b.Meta.AugmentCluster {
		assign, err := p.b.Mixture.Assign(reduced)
		if err != nil {
			return nil, nil, fmt.Errorf("assign clusters: %w", err)
		}
		features = appendClusterColumn(reduced, assign)
	}

	classIDs, err := p.b.Classifier.Predict(features)
	if err != nil {
		return nil, nil, err
	}
	logProbs, err = p.b.Classifier.PredictLogProba(features)
	if err != nil {
		return nil, nil, err
	}
	sanitizeLogProbs(logProbs)

	oneHot, err = dataset.OneHot(classIDs, p.b.Classifier.Classes)
	if err != nil {
		return nil, nil, err
	}
	return oneHot, logProbs, nil
}

// sanitizeLogProbs replaces -Inf with NaN in place so downstream averaging
// can exclude structurally undefined entries instead of treating them as
// numbers.
func sanitizeLogProbs(lp *mat.Dense) {
	n, c := lp.Dims()
	for i := 0; i < n; i++ {
		row := lp.RawRowView(i)
		for j := 0; j < c; j++ {
			if math.IsInf(row[j], -1) {
				row[j] = math.NaN()
			}
		}
	}
}
