package pipeline

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"digitmix/bundle"
	"digitmix/dataset"
	"digitmix/mixture"
)

var blobCenters = [][]float64{
	{0, 0, 0, 0, 0, 0},
	{8, 8, 0, 0, 0, 0},
	{0, 0, 8, 8, 0, 0},
}

func trainTestSplit(t *testing.T) (xTrain, yTrain, xTest, yTest *mat.Dense) {
	t.Helper()
	var err error
	xTrain, yTrain, err = dataset.Blobs(41, blobCenters, 80, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xTest, yTest, err = dataset.Blobs(42, blobCenters, 40, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return xTrain, yTrain, xTest, yTest
}

func trainCfg(modelPath string) TrainConfig {
	return TrainConfig{
		ReducedDims:    2,
		Components:     [2]int{2, 5},
		EMMaxIter:      200,
		Seed:           7,
		AugmentCluster: true,
		ModelPath:      modelPath,
	}
}

func TestEndToEndAccuracy(t *testing.T) {
	xTrain, yTrain, xTest, yTest := trainTestSplit(t)
	res, err := Train(trainCfg(""), xTrain, yTrain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pred := NewPredictor(res.Bundle)
	oneHot, logProbs, err := pred.PredictBatch(xTest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metrics, err := Score(yTest, oneHot, logProbs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.Accuracy <= 0.9 {
		t.Fatalf("held-out accuracy %.3f, want > 0.9", metrics.Accuracy)
	}
	if metrics.DefinedRows == 0 {
		t.Fatal("no defined log-likelihood rows on in-distribution data")
	}
	if metrics.MeanLogLikelihood > 0 {
		t.Fatalf("mean log-likelihood %v must not be positive", metrics.MeanLogLikelihood)
	}
}

func TestOneHotRowsSumToOne(t *testing.T) {
	xTrain, yTrain, xTest, _ := trainTestSplit(t)
	res, err := Train(trainCfg(""), xTrain, yTrain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oneHot, _, err := NewPredictor(res.Bundle).PredictBatch(xTest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, c := oneHot.Dims()
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += oneHot.At(i, j)
		}
		if sum != 1 {
			t.Fatalf("row %d sums to %v, want exactly 1", i, sum)
		}
	}
}

func TestBundleRoundTripReproducesPredictions(t *testing.T) {
	xTrain, yTrain, xTest, _ := trainTestSplit(t)
	path := filepath.Join(t.TempDir(), "model.bundle")
	res, err := Train(trainCfg(path), xTrain, yTrain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	memOneHot, memLP, err := NewPredictor(res.Bundle).PredictBatch(xTest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := bundle.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diskOneHot, diskLP, err := NewPredictor(loaded).PredictBatch(xTest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !mat.Equal(memOneHot, diskOneHot) {
		t.Fatal("one-hot predictions differ between memory and disk bundles")
	}
	n, c := memLP.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			a, b := memLP.At(i, j), diskLP.At(i, j)
			if math.IsNaN(a) != math.IsNaN(b) {
				t.Fatalf("undefined markers differ at (%d,%d)", i, j)
			}
			if !math.IsNaN(a) && math.Abs(a-b) > 1e-9 {
				t.Fatalf("log-probabilities differ at (%d,%d): %v vs %v", i, j, a, b)
			}
		}
	}
}

func TestPredictBatchDimensionGuard(t *testing.T) {
	xTrain, yTrain, _, _ := trainTestSplit(t)
	res, err := Train(trainCfg(""), xTrain, yTrain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wrong := mat.NewDense(3, 4, nil)
	_, _, err = NewPredictor(res.Bundle).PredictBatch(wrong)
	if !errors.Is(err, dataset.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestTriviallySeparableAccuracyIsOne(t *testing.T) {
	// two point masses with tiny jitter: all-zero vs all-one vectors
	xTrain, yTrain, err := dataset.Blobs(43, [][]float64{{0, 0, 0, 0}, {1, 1, 1, 1}}, 50, 0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xTest, yTest, err := dataset.Blobs(44, [][]float64{{0, 0, 0, 0}, {1, 1, 1, 1}}, 25, 0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := Train(TrainConfig{
		ReducedDims: 2,
		Components:  [2]int{2, 3},
		Families:    []mixture.Family{mixture.Diag},
		Seed:        5,
	}, xTrain, yTrain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oneHot, logProbs, err := NewPredictor(res.Bundle).PredictBatch(xTest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metrics, err := Score(yTest, oneHot, logProbs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.Accuracy != 1.0 {
		t.Fatalf("separable classes scored %.3f, want 1.0", metrics.Accuracy)
	}
}

func TestScoreExcludesUndefinedRows(t *testing.T) {
	truth, err := dataset.OneHot([]int{0, 1, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pred, err := dataset.OneHot([]int{0, 1, 1}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logProbs := mat.NewDense(3, 2, []float64{
		-0.5, -2.0,
		-3.0, math.Inf(-1), // true class has zero mass on this row
		-1.5, -0.7,
	})
	sanitizeLogProbs(logProbs)

	metrics, err := Score(truth, pred, logProbs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (-0.5 + -1.5) / 2
	if math.Abs(metrics.MeanLogLikelihood-want) > 1e-12 {
		t.Fatalf("mean log-likelihood %v, want %v (undefined row excluded)", metrics.MeanLogLikelihood, want)
	}
	if metrics.DefinedRows != 2 {
		t.Fatalf("expected 2 defined rows, got %d", metrics.DefinedRows)
	}
	if math.Abs(metrics.Accuracy-2.0/3) > 1e-12 {
		t.Fatalf("accuracy %v, want 2/3", metrics.Accuracy)
	}
}

func TestScoreAllUndefined(t *testing.T) {
	truth, _ := dataset.OneHot([]int{0}, 2)
	pred, _ := dataset.OneHot([]int{0}, 2)
	logProbs := mat.NewDense(1, 2, []float64{math.NaN(), -0.1})
	metrics, err := Score(truth, pred, logProbs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(metrics.MeanLogLikelihood) {
		t.Fatalf("expected NaN mean log-likelihood, got %v", metrics.MeanLogLikelihood)
	}
}

func TestTrainRejectsMismatchedLabels(t *testing.T) {
	x := mat.NewDense(10, 4, nil)
	y := mat.NewDense(8, 2, nil)
	_, err := Train(TrainConfig{ReducedDims: 2, Components: [2]int{2, 2}}, x, y)
	if !errors.Is(err, dataset.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}
