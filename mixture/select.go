package mixture

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// SearchConfig controls BIC model selection over a grid of component counts
// crossed with covariance families.
type SearchConfig struct {
	KMin     int
	KMax     int
	Families []Family // defaults to AllFamilies
	EM       Config
	Seed     uint64
	Workers  int // defaults to GOMAXPROCS
}

type candidate struct {
	family Family
	k      int
}

type fitResult struct {
	model *Model
	err   error
}

// Select fits every candidate on the grid and returns the model with the
// lowest BIC, along with the hard cluster assignment of each input row under
// that model.
//
// Candidates are independent, so fits run across a worker pool over the
// read-only input. Selection itself scans results in fixed enumeration order
// (families as configured, component counts ascending) and only a strictly
// lower score displaces the incumbent, so ties resolve to the earliest
// candidate and the outcome is deterministic for a fixed seed.
func Select(x *mat.Dense, cfg SearchConfig) (*Model, []int, error) {
	if cfg.KMin < 1 || cfg.KMax < cfg.KMin {
		return nil, nil, fmt.Errorf("invalid component range [%d,%d]", cfg.KMin, cfg.KMax)
	}
	families := cfg.Families
	if len(families) == 0 {
		families = AllFamilies
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var grid []candidate
	for _, f := range families {
		for k := cfg.KMin; k <= cfg.KMax; k++ {
			grid = append(grid, candidate{family: f, k: k})
		}
	}

	results := make([]fitResult, len(grid))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				em := cfg.EM
				// per-candidate seed keeps the search deterministic
				// regardless of scheduling
				em.Seed = cfg.Seed + uint64(idx)
				model, err := Fit(x, grid[idx].k, grid[idx].family, em)
				results[idx] = fitResult{model: model, err: err}
			}
		}()
	}
	for idx := range grid {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	var best *Model
	var firstErr error
	for _, res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		if best == nil || res.model.BIC < best.BIC {
			best = res.model
		}
	}
	if best == nil {
		return nil, nil, fmt.Errorf("no mixture candidate could be fitted: %w", firstErr)
	}

	assign, err := best.Assign(x)
	if err != nil {
		return nil, nil, err
	}
	return best, assign, nil
}
