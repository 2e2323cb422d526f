package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"digitmix/classify"
	"digitmix/dataset"
	"digitmix/mixture"
	"digitmix/reduce"
)

func fittedBundle(t *testing.T, k int) *Bundle {
	t.Helper()
	x, y, err := dataset.Blobs(31, [][]float64{{0, 0, 0, 0}, {5, 5, 0, 0}}, 40, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proj, err := reduce.Fit(x, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reduced, err := proj.Transform(x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	model, err := mixture.Fit(reduced, k, mixture.Diag, mixture.Config{Seed: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	disc, err := classify.Fit(reduced, dataset.Labels(y), classify.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &Bundle{
		Projection: proj,
		Mixture:    model,
		Classifier: disc,
		Meta:       Meta{TrainRows: 80, CreatedAt: time.Now()},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	b := fittedBundle(t, 2)
	path := filepath.Join(t.TempDir(), "model.bundle")
	if err := Save(path, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Mixture.K != b.Mixture.K || loaded.Mixture.Family != b.Mixture.Family {
		t.Fatal("mixture did not survive the round trip")
	}
	if loaded.Projection.OutputDim != 2 || loaded.Classifier.Classes != 2 {
		t.Fatal("artifacts did not survive the round trip")
	}
	if loaded.Projection.Basis[0] != b.Projection.Basis[0] {
		t.Fatal("projection basis changed across the round trip")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bundle"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bundle")
	if err := os.WriteFile(path, []byte("not a bundle"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestSaveRejectsPartialBundle(t *testing.T) {
	b := fittedBundle(t, 2)
	b.Classifier = nil
	err := Save(filepath.Join(t.TempDir(), "model.bundle"), b)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestStoreCachesLoads(t *testing.T) {
	s, err := NewStore(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	path := filepath.Join(t.TempDir(), "model.bundle")
	if err := Save(path, fittedBundle(t, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := s.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := s.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatal("expected the cached bundle on the second load")
	}
}

func TestStoreInvalidatesOnOverwrite(t *testing.T) {
	s, err := NewStore(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	path := filepath.Join(t.TempDir(), "model.bundle")
	if err := s.Save(path, fittedBundle(t, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Load(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// overwrite behind the store's back, as a separate training run would
	if err := Save(path, fittedBundle(t, 3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		loaded, err := s.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loaded.Mixture.K == 3 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("store kept serving the stale bundle after overwrite")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
