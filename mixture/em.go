package mixture

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config controls a single EM fit.
type Config struct {
	MaxIter int     // iteration cap, default 100
	Tol     float64 // relative log-likelihood tolerance, default 1e-4
	Reg     float64 // covariance floor, default 1e-6
	Seed    uint64  // initialization seed
}

const (
	defaultMaxIter = 100
	defaultTol     = 1e-4
	defaultReg     = 1e-6
)

func (c Config) withDefaults() Config {
	if c.MaxIter <= 0 {
		c.MaxIter = defaultMaxIter
	}
	if c.Tol <= 0 {
		c.Tol = defaultTol
	}
	if c.Reg <= 0 {
		c.Reg = defaultReg
	}
	return c
}

// Fit runs EM for a k-component mixture with the given covariance family.
// Hitting the iteration cap without converging is not an error; the best
// available fit is returned with Converged=false.
func Fit(x *mat.Dense, k int, family Family, cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	n, _ := x.Dims()
	if k < 1 {
		return nil, fmt.Errorf("component count must be positive, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("cannot fit %d components to %d rows", k, n)
	}

	m := initModel(x, k, family, cfg)
	if err := m.ensureNormals(); err != nil {
		return nil, err
	}

	resp := make([]float64, n*k)
	buf := make([]float64, k)
	prevLogL := math.Inf(-1)
	for iter := 0; iter < cfg.MaxIter; iter++ {
		// E-step: responsibilities and total log-likelihood.
		logL := 0.0
		for i := 0; i < n; i++ {
			m.rowWeightedLogProbs(x.RawRowView(i), buf)
			lse := floats.LogSumExp(buf)
			logL += lse
			r := resp[i*k : (i+1)*k]
			for c := 0; c < k; c++ {
				r[c] = math.Exp(buf[c] - lse)
			}
		}
		m.LogLik = logL
		m.Iters = iter + 1
		if iter > 0 && math.Abs(logL-prevLogL) <= cfg.Tol*math.Abs(logL) {
			m.Converged = true
			break
		}
		prevLogL = logL

		if err := mStep(m, x, resp, cfg.Reg); err != nil {
			return nil, err
		}
	}
	m.BIC = -2*m.LogLik + float64(m.nParams())*math.Log(float64(n))
	return m, nil
}

// initModel seeds component means from random distinct rows and starts every
// family from the per-axis variance of the data.
func initModel(x *mat.Dense, k int, family Family, cfg Config) *Model {
	n, d := x.Dims()
	rnd := rand.New(rand.NewSource(cfg.Seed))

	m := &Model{K: k, Dim: d, Family: family}
	m.Weights = make([]float64, k)
	m.Means = make([]float64, k*d)
	for c, idx := range rnd.Perm(n)[:k] {
		m.Weights[c] = 1 / float64(k)
		copy(m.mean(c), x.RawRowView(idx))
	}

	colVar := make([]float64, d)
	mean := make([]float64, d)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j := 0; j < d; j++ {
			mean[j] += row[j]
		}
	}
	for j := 0; j < d; j++ {
		mean[j] /= float64(n)
	}
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j := 0; j < d; j++ {
			dv := row[j] - mean[j]
			colVar[j] += dv * dv
		}
	}
	for j := 0; j < d; j++ {
		colVar[j] = colVar[j]/float64(n) + cfg.Reg
	}

	switch family {
	case Spherical:
		m.Vars = make([]float64, k)
		v := floats.Sum(colVar) / float64(d)
		for c := range m.Vars {
			m.Vars[c] = v
		}
	case Diag:
		m.Vars = make([]float64, k*d)
		for c := 0; c < k; c++ {
			copy(m.Vars[c*d:(c+1)*d], colVar)
		}
	case Tied:
		m.Covs = diagFlat(d, colVar, 1)
	case Full:
		m.Covs = make([]float64, 0, k*d*d)
		m.Covs = append(m.Covs, diagFlat(d, colVar, k)...)
	}
	return m
}

// diagFlat builds reps concatenated d x d diagonal matrices.
func diagFlat(d int, diag []float64, reps int) []float64 {
	out := make([]float64, reps*d*d)
	for r := 0; r < reps; r++ {
		base := r * d * d
		for j := 0; j < d; j++ {
			out[base+j*d+j] = diag[j]
		}
	}
	return out
}

func mStep(m *Model, x *mat.Dense, resp []float64, reg float64) error {
	n, d := x.Dims()
	k := m.K

	nk := make([]float64, k)
	for i := 0; i < n; i++ {
		r := resp[i*k : (i+1)*k]
		for c := 0; c < k; c++ {
			nk[c] += r[c]
		}
	}
	for c := 0; c < k; c++ {
		// tiny floor keeps empty components alive instead of producing NaNs
		if nk[c] < 1e-10 {
			nk[c] = 1e-10
		}
		m.Weights[c] = nk[c] / float64(n)
	}

	for j := range m.Means {
		m.Means[j] = 0
	}
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		r := resp[i*k : (i+1)*k]
		for c := 0; c < k; c++ {
			mu := m.mean(c)
			for j := 0; j < d; j++ {
				mu[j] += r[c] * row[j]
			}
		}
	}
	for c := 0; c < k; c++ {
		mu := m.mean(c)
		for j := 0; j < d; j++ {
			mu[j] /= nk[c]
		}
	}

	switch m.Family {
	case Spherical, Diag:
		vars := make([]float64, k*d)
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			r := resp[i*k : (i+1)*k]
			for c := 0; c < k; c++ {
				mu := m.mean(c)
				v := vars[c*d : (c+1)*d]
				for j := 0; j < d; j++ {
					dv := row[j] - mu[j]
					v[j] += r[c] * dv * dv
				}
			}
		}
		for c := 0; c < k; c++ {
			v := vars[c*d : (c+1)*d]
			for j := 0; j < d; j++ {
				v[j] = v[j]/nk[c] + reg
			}
		}
		if m.Family == Diag {
			m.Vars = vars
		} else {
			for c := 0; c < k; c++ {
				m.Vars[c] = floats.Sum(vars[c*d:(c+1)*d]) / float64(d)
			}
		}
	case Tied:
		cov := make([]float64, d*d)
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			r := resp[i*k : (i+1)*k]
			for c := 0; c < k; c++ {
				mu := m.mean(c)
				for a := 0; a < d; a++ {
					da := r[c] * (row[a] - mu[a])
					for b := a; b < d; b++ {
						cov[a*d+b] += da * (row[b] - mu[b])
					}
				}
			}
		}
		for a := 0; a < d; a++ {
			for b := a; b < d; b++ {
				v := cov[a*d+b] / float64(n)
				cov[a*d+b] = v
				cov[b*d+a] = v
			}
			cov[a*d+a] += reg
		}
		m.Covs = cov
	case Full:
		covs := make([]float64, k*d*d)
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			r := resp[i*k : (i+1)*k]
			for c := 0; c < k; c++ {
				mu := m.mean(c)
				cov := covs[c*d*d : (c+1)*d*d]
				for a := 0; a < d; a++ {
					da := r[c] * (row[a] - mu[a])
					for b := a; b < d; b++ {
						cov[a*d+b] += da * (row[b] - mu[b])
					}
				}
			}
		}
		for c := 0; c < k; c++ {
			cov := covs[c*d*d : (c+1)*d*d]
			for a := 0; a < d; a++ {
				for b := a; b < d; b++ {
					v := cov[a*d+b] / nk[c]
					cov[a*d+b] = v
					cov[b*d+a] = v
				}
				cov[a*d+a] += reg
			}
		}
		m.Covs = covs
	}

	m.invalidate()
	return m.ensureNormals()
}
