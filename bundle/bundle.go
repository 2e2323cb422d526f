// Package bundle persists the three fitted pipeline artifacts as one keyed
// container. The artifacts are only ever valid together; a bundle with any
// of them missing is corrupt.
package bundle

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"time"

	"digitmix/classify"
	"digitmix/mixture"
	"digitmix/reduce"
)

var (
	ErrNotFound = errors.New("model bundle not found")
	ErrCorrupt  = errors.New("model bundle corrupt")
)

// Meta records training facts the predictor must replay exactly.
type Meta struct {
	AugmentCluster bool // whether the cluster id was appended as a feature
	TrainRows      int
	CreatedAt      time.Time
}

// Bundle is the fitted model triple plus its metadata.
type Bundle struct {
	Projection *reduce.Projection
	Mixture    *mixture.Model
	Classifier *classify.Discriminant
	Meta       Meta
}

func (b *Bundle) validate() error {
	if b.Projection == nil || b.Mixture == nil || b.Classifier == nil {
		return fmt.Errorf("bundle is missing an artifact: %w", ErrCorrupt)
	}
	if b.Projection.OutputDim != b.Mixture.Dim {
		return fmt.Errorf("projection emits %d dims but mixture expects %d: %w",
			b.Projection.OutputDim, b.Mixture.Dim, ErrCorrupt)
	}
	want := b.Projection.OutputDim
	if b.Meta.AugmentCluster {
		want++
	}
	if b.Classifier.Dim != want {
		return fmt.Errorf("classifier expects %d dims but pipeline produces %d: %w",
			b.Classifier.Dim, want, ErrCorrupt)
	}
	return nil
}

// Save writes the bundle to a single gob file, replacing any previous one.
func Save(path string, b *Bundle) error {
	if err := b.validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(b); err != nil {
		return fmt.Errorf("encode bundle %s: %w", path, err)
	}
	return nil
}

// Load reads and validates a bundle file.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("open bundle file: %w", err)
	}
	defer f.Close()

	var b Bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %v: %w", path, err, ErrCorrupt)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
