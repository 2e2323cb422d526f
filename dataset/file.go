package dataset

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Container file errors.
var (
	ErrNotFound     = errors.New("dataset file not found")
	ErrEntryMissing = errors.New("dataset entry missing")
)

// Conventional entry keys for train/test splits.
const (
	KeyXTrain = "xtrain"
	KeyYTrain = "ytrain"
	KeyXTest  = "xtest"
	KeyYTest  = "ytest"
)

// Save writes named arrays into a single gob container file.
func Save(path string, arrays map[string]Array) error {
	for key, a := range arrays {
		if err := a.Validate(0); err != nil {
			return fmt.Errorf("entry %q: %w", key, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(arrays); err != nil {
		return fmt.Errorf("encode dataset file %s: %w", path, err)
	}
	return nil
}

// Load reads a container file and verifies that every requested key is
// present. With no keys it returns all entries.
func Load(path string, keys ...string) (map[string]Array, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()

	var arrays map[string]Array
	if err := gob.NewDecoder(f).Decode(&arrays); err != nil {
		return nil, fmt.Errorf("decode dataset file %s: %w", path, err)
	}
	for _, key := range keys {
		a, ok := arrays[key]
		if !ok {
			return nil, fmt.Errorf("%s has no entry %q: %w", path, key, ErrEntryMissing)
		}
		if err := a.Validate(0); err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
	}
	return arrays, nil
}

// LoadPair loads a feature/label pair from a container file as gonum
// matrices.
func LoadPair(path, xKey, yKey string) (x, y *mat.Dense, err error) {
	arrays, err := Load(path, xKey, yKey)
	if err != nil {
		return nil, nil, err
	}
	return arrays[xKey].Matrix(), arrays[yKey].Matrix(), nil
}
