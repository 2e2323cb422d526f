package dataset

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digits.bin")
	arrays := map[string]Array{
		KeyXTrain: {Rows: 2, Cols: 3, Data: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}},
		KeyYTrain: {Rows: 2, Cols: 2, Data: []float64{1, 0, 0, 1}},
	}
	if err := Save(path, arrays); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := Load(path, KeyXTrain, KeyYTrain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x := loaded[KeyXTrain]
	if x.Rows != 2 || x.Cols != 3 {
		t.Fatalf("expected 2x3 array, got %dx%d", x.Rows, x.Cols)
	}
	if x.Data[4] != 0.5 {
		t.Fatalf("expected 0.5 at index 4, got %v", x.Data[4])
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"), KeyXTrain)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadMissingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digits.bin")
	if err := Save(path, map[string]Array{KeyXTrain: {Rows: 1, Cols: 1, Data: []float64{1}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := Load(path, KeyXTrain, KeyYTrain)
	if !errors.Is(err, ErrEntryMissing) {
		t.Fatalf("expected ErrEntryMissing, got %v", err)
	}
}

func TestNewArrayRejectsBadShape(t *testing.T) {
	_, err := NewArray(2, 3, []float64{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOneHotRoundTrip(t *testing.T) {
	labels := []int{3, 0, 9, 9, 1}
	oneHot, err := OneHot(labels, NumClasses)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, label := range Labels(oneHot) {
		if label != labels[i] {
			t.Fatalf("row %d decoded to %d, want %d", i, label, labels[i])
		}
	}
	for i := range labels {
		sum := 0.0
		for j := 0; j < NumClasses; j++ {
			sum += oneHot.At(i, j)
		}
		if sum != 1 {
			t.Fatalf("row %d sums to %v, want 1", i, sum)
		}
	}
}

func TestOneHotRejectsOutOfRange(t *testing.T) {
	if _, err := OneHot([]int{10}, NumClasses); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRasterShape(t *testing.T) {
	v := make([]float64, ImageDim)
	v[ImageSide] = 0.7 // first pixel of second row
	raster, err := Raster(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raster) != ImageSide || len(raster[0]) != ImageSide {
		t.Fatalf("expected %dx%d raster", ImageSide, ImageSide)
	}
	if raster[1][0] != 0.7 {
		t.Fatalf("row-major layout broken: raster[1][0]=%v", raster[1][0])
	}

	if _, err := Raster(make([]float64, 100)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestBlobsDeterministic(t *testing.T) {
	centers := [][]float64{{0, 0}, {5, 5}}
	x1, _, err := Blobs(42, centers, 10, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x2, _, err := Blobs(42, centers, 10, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, c := x1.Dims()
	if r != 20 || c != 2 {
		t.Fatalf("expected 20x2, got %dx%d", r, c)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if x1.At(i, j) != x2.At(i, j) {
				t.Fatalf("same seed produced different data at (%d,%d)", i, j)
			}
		}
	}
}
