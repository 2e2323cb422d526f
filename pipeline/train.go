// Package pipeline wires the fitted components into the train-time and
// predict-time flows: reduce -> estimate -> classify -> store, and
// store -> reduce -> assign -> classify -> evaluate.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"digitmix/bundle"
	"digitmix/classify"
	"digitmix/dataset"
	"digitmix/logging"
	"digitmix/mixture"
	"digitmix/reduce"
)

// TrainConfig collects every knob of the training run.
type TrainConfig struct {
	ReducedDims    int              // projection target, e.g. 50
	Components     [2]int           // inclusive mixture component search range
	Families       []mixture.Family // defaults to all four
	EMMaxIter      int
	EMTol          float64
	RegCovar       float64
	Seed           uint64
	AugmentCluster bool   // append the cluster id as an extra feature
	ModelPath      string // where to persist the bundle; empty skips persistence
}

// TrainResult reports what the run produced.
type TrainResult struct {
	Bundle   *bundle.Bundle
	Rows     int
	Duration time.Duration
}

// Train fits the projection, the mixture and the discriminant on x with
// one-hot labels y, then persists them as one bundle.
func Train(cfg TrainConfig, x, y *mat.Dense) (*TrainResult, error) {
	start := time.Now()
	log := logging.L()

	n, d := x.Dims()
	yn, _ := y.Dims()
	if yn != n {
		return nil, fmt.Errorf("%d feature rows but %d label rows: %w",
			n, yn, dataset.ErrDimensionMismatch)
	}
	labels := dataset.Labels(y)

	log.Infow("fitting projection", "rows", n, "input_dims", d, "reduced_dims", cfg.ReducedDims)
	proj, err := reduce.Fit(x, cfg.ReducedDims)
	if err != nil {
		return nil, fmt.Errorf("fit projection: %w", err)
	}
	reduced, err := proj.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("transform training data: %w", err)
	}

	log.Infow("selecting mixture",
		"k_min", cfg.Components[0], "k_max", cfg.Components[1], "families", len(cfg.Families))
	model, assign, err := mixture.Select(reduced, mixture.SearchConfig{
		KMin:     cfg.Components[0],
		KMax:     cfg.Components[1],
		Families: cfg.Families,
		EM: mixture.Config{
			MaxIter: cfg.EMMaxIter,
			Tol:     cfg.EMTol,
			Reg:     cfg.RegCovar,
		},
		Seed: cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("select mixture: %w", err)
	}
	log.Infow("mixture selected",
		"components", model.K, "family", model.Family.String(),
		"bic", model.BIC, "converged", model.Converged)

	features := reduced
	if cfg.AugmentCluster {
		features = appendClusterColumn(reduced, assign)
	}
	disc, err := classify.Fit(features, labels, classify.Config{
		Reg:        cfg.RegCovar,
		NumClasses: numClasses(y),
	})
	if err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}

	b := &bundle.Bundle{
		Projection: proj,
		Mixture:    model,
		Classifier: disc,
		Meta: bundle.Meta{
			AugmentCluster: cfg.AugmentCluster,
			TrainRows:      n,
			CreatedAt:      time.Now(),
		},
	}
	if cfg.ModelPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ModelPath), 0o755); err != nil {
			return nil, fmt.Errorf("create model dir: %w", err)
		}
		if err := bundle.Save(cfg.ModelPath, b); err != nil {
			return nil, err
		}
		log.Infow("bundle saved", "path", cfg.ModelPath)
	}
	return &TrainResult{Bundle: b, Rows: n, Duration: time.Since(start)}, nil
}

func numClasses(y *mat.Dense) int {
	_, c := y.Dims()
	return c
}

// appendClusterColumn widens reduced features with the cluster id as one
// extra scalar dimension. Train and predict must apply it identically.
func appendClusterColumn(x *mat.Dense, assign []int) *mat.Dense {
	n, d := x.Dims()
	out := mat.NewDense(n, d+1, nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		copy(row, x.RawRowView(i))
		row[d] = float64(assign[i])
	}
	return out
}
