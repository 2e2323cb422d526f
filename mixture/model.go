// Package mixture fits Gaussian mixture models over reduced feature vectors
// and selects component count and covariance family by BIC.
package mixture

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Family is the structural constraint on component covariances.
type Family int

const (
	Spherical Family = iota // scalar variance per component
	Tied                    // one full covariance shared by all components
	Diag                    // per-axis variances per component
	Full                    // unconstrained covariance per component
)

// AllFamilies lists every family in enumeration order. Model selection
// iterates this order, so ties resolve to the earlier family.
var AllFamilies = []Family{Spherical, Tied, Diag, Full}

func (f Family) String() string {
	switch f {
	case Spherical:
		return "spherical"
	case Tied:
		return "tied"
	case Diag:
		return "diag"
	case Full:
		return "full"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// ParseFamily converts a family name to its enum value.
func ParseFamily(s string) (Family, error) {
	for _, f := range AllFamilies {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown covariance family %q", s)
}

const log2Pi = 1.8378770664093453

// Model is a fitted Gaussian mixture. Parameter fields are plain data so a
// model gob-encodes inside a bundle; density caches rebuild lazily.
type Model struct {
	K      int
	Dim    int
	Family Family

	Weights []float64 // K mixing weights
	Means   []float64 // K x Dim, row-major
	Vars    []float64 // Spherical: K; Diag: K x Dim; nil otherwise
	Covs    []float64 // Tied: Dim x Dim; Full: K x Dim x Dim; nil otherwise

	LogLik    float64 // training log-likelihood at the final iteration
	BIC       float64
	Iters     int
	Converged bool

	normals []*distmv.Normal // tied/full density cache
}

func (m *Model) mean(c int) []float64 {
	return m.Means[c*m.Dim : (c+1)*m.Dim]
}

func (m *Model) fullCov(c int) []float64 {
	d2 := m.Dim * m.Dim
	return m.Covs[c*d2 : (c+1)*d2]
}

// ensureNormals builds the distmv densities for tied/full families. Stored
// covariances carry a regularization floor, but a loaded model could still be
// borderline, so the diagonal is jittered until the factorization succeeds.
func (m *Model) ensureNormals() error {
	if m.Family != Tied && m.Family != Full {
		return nil
	}
	if m.normals != nil {
		return nil
	}
	normals := make([]*distmv.Normal, m.K)
	for c := 0; c < m.K; c++ {
		cov := m.Covs
		if m.Family == Full {
			cov = m.fullCov(c)
		}
		norm, err := normalFromCov(m.mean(c), m.Dim, cov)
		if err != nil {
			return fmt.Errorf("component %d: %w", c, err)
		}
		normals[c] = norm
	}
	m.normals = normals
	return nil
}

func normalFromCov(mean []float64, dim int, cov []float64) (*distmv.Normal, error) {
	jitter := 0.0
	for attempt := 0; attempt < 7; attempt++ {
		data := make([]float64, len(cov))
		copy(data, cov)
		for j := 0; j < dim; j++ {
			data[j*dim+j] += jitter
		}
		if norm, ok := distmv.NewNormal(mean, mat.NewSymDense(dim, data), nil); ok {
			return norm, nil
		}
		if jitter == 0 {
			jitter = 1e-9
		} else {
			jitter *= 100
		}
	}
	return nil, fmt.Errorf("covariance is numerically singular")
}

// invalidate drops the density cache after a parameter update.
func (m *Model) invalidate() { m.normals = nil }

func (m *Model) logProbComp(c int, row []float64) float64 {
	mu := m.mean(c)
	switch m.Family {
	case Spherical:
		v := m.Vars[c]
		ss := 0.0
		for j, x := range row {
			d := x - mu[j]
			ss += d * d
		}
		return -0.5 * (float64(m.Dim)*(log2Pi+math.Log(v)) + ss/v)
	case Diag:
		vars := m.Vars[c*m.Dim : (c+1)*m.Dim]
		sum := 0.0
		for j, x := range row {
			d := x - mu[j]
			sum += log2Pi + math.Log(vars[j]) + d*d/vars[j]
		}
		return -0.5 * sum
	default:
		return m.normals[c].LogProb(row)
	}
}

// rowWeightedLogProbs fills buf with log w_c + log N_c(row).
func (m *Model) rowWeightedLogProbs(row, buf []float64) {
	for c := 0; c < m.K; c++ {
		buf[c] = math.Log(m.Weights[c]) + m.logProbComp(c, row)
	}
}

// Assign hard-assigns each row of x to its most probable component.
func (m *Model) Assign(x *mat.Dense) ([]int, error) {
	n, d := x.Dims()
	if d != m.Dim {
		return nil, fmt.Errorf("input has %d columns, mixture expects %d", d, m.Dim)
	}
	if err := m.ensureNormals(); err != nil {
		return nil, err
	}
	buf := make([]float64, m.K)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		m.rowWeightedLogProbs(x.RawRowView(i), buf)
		out[i] = floats.MaxIdx(buf)
	}
	return out, nil
}

// LogProb returns the mixture log density of each row of x.
func (m *Model) LogProb(x *mat.Dense) ([]float64, error) {
	n, d := x.Dims()
	if d != m.Dim {
		return nil, fmt.Errorf("input has %d columns, mixture expects %d", d, m.Dim)
	}
	if err := m.ensureNormals(); err != nil {
		return nil, err
	}
	buf := make([]float64, m.K)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		m.rowWeightedLogProbs(x.RawRowView(i), buf)
		out[i] = floats.LogSumExp(buf)
	}
	return out, nil
}

// nParams counts free parameters for the BIC penalty.
func (m *Model) nParams() int {
	p := m.K*m.Dim + m.K - 1
	switch m.Family {
	case Spherical:
		p += m.K
	case Diag:
		p += m.K * m.Dim
	case Tied:
		p += m.Dim * (m.Dim + 1) / 2
	case Full:
		p += m.K * m.Dim * (m.Dim + 1) / 2
	}
	return p
}

func (m *Model) String() string {
	return fmt.Sprintf("gmm(k=%d, family=%s, bic=%.2f)", m.K, m.Family, m.BIC)
}
