package svgp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// VariationalNormal is the variational distribution q(u) = N(m, S) over
// the latent values at the inducing points. The covariance is held as a
// lower-triangular factor, S = L·Lᵀ, with the diagonal of L stored in
// log form. That keeps the diagonal strictly positive for any raw
// parameter values, so S is symmetric positive-semidefinite by
// construction rather than by post-hoc checks.
type VariationalNormal struct {
	dim int
	m   []float64
	// l is the lower triangle of L packed row-major; diagonal entries
	// hold log(L[i][i]), off-diagonal entries are unconstrained.
	l []float64
}

// NewVariationalNormal returns a variational distribution of the given
// dimension, initialized to a standard normal (m = 0, L = I).
func NewVariationalNormal(dim int) (*VariationalNormal, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: variational dimension %d must be positive", ErrConfig, dim)
	}
	return &VariationalNormal{
		dim: dim,
		m:   make([]float64, dim),
		l:   make([]float64, dim*(dim+1)/2),
	}, nil
}

// Dim returns the number of inducing points the distribution covers.
func (q *VariationalNormal) Dim() int { return q.dim }

// packIdx maps (i, j) with j <= i into the packed lower triangle.
func packIdx(i, j int) int { return i*(i+1)/2 + j }

// MeanVec returns the variational mean as a vector backed by fresh
// memory.
func (q *VariationalNormal) MeanVec() *mat.VecDense {
	m := make([]float64, q.dim)
	copy(m, q.m)
	return mat.NewVecDense(q.dim, m)
}

// CholFactor places the effective lower-triangular factor L into dst,
// exponentiating the stored log-diagonal. If dst is nil a new factor is
// allocated.
func (q *VariationalNormal) CholFactor(dst *mat.TriDense) *mat.TriDense {
	if dst == nil {
		dst = mat.NewTriDense(q.dim, mat.Lower, nil)
	}
	if n, _ := dst.Dims(); n != q.dim {
		panic(badStorageDim)
	}
	for i := 0; i < q.dim; i++ {
		for j := 0; j <= i; j++ {
			v := q.l[packIdx(i, j)]
			if i == j {
				v = math.Exp(v)
			}
			dst.SetTri(i, j, v)
		}
	}
	return dst
}

// Cov places the covariance S = L·Lᵀ into dst. If dst is nil a new
// matrix is allocated.
func (q *VariationalNormal) Cov(dst *mat.SymDense) *mat.SymDense {
	if dst == nil {
		dst = mat.NewSymDense(q.dim, nil)
	}
	if dst.SymmetricDim() != q.dim {
		panic(badStorageDim)
	}
	dst.SymOuterK(1, q.CholFactor(nil))
	return dst
}

// LogDetCov returns log det S. The determinant of a triangular factor is
// the product of its diagonal, and the diagonal is stored in log form,
// so this is a plain sum with no factorization.
func (q *VariationalNormal) LogDetCov() float64 {
	var ld float64
	for i := 0; i < q.dim; i++ {
		ld += 2 * q.l[packIdx(i, i)]
	}
	return ld
}

// SetCholFactor overwrites the variational factor with the given lower
// triangle, storing its (strictly positive) diagonal in log form.
func (q *VariationalNormal) SetCholFactor(l *mat.TriDense) error {
	if n, _ := l.Dims(); n != q.dim {
		return fmt.Errorf("%w: factor is %d×%d, want %d×%d", ErrDimensionMismatch, n, n, q.dim, q.dim)
	}
	for i := 0; i < q.dim; i++ {
		d := l.At(i, i)
		if !(d > 0) {
			return fmt.Errorf("%w: factor diagonal %d is %v, must be positive", ErrConfig, i, d)
		}
		q.l[packIdx(i, i)] = math.Log(d)
		for j := 0; j < i; j++ {
			q.l[packIdx(i, j)] = l.At(i, j)
		}
	}
	return nil
}

// SetMean overwrites the variational mean.
func (q *VariationalNormal) SetMean(m []float64) error {
	if len(m) != q.dim {
		return fmt.Errorf("%w: mean length %d, want %d", ErrDimensionMismatch, len(m), q.dim)
	}
	copy(q.m, m)
	return nil
}

// NumHyper returns the number of raw variational parameters: dim for the
// mean plus dim·(dim+1)/2 for the packed factor.
func (q *VariationalNormal) NumHyper() int { return q.dim + len(q.l) }

func (q *VariationalNormal) Hyper(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, q.NumHyper())
	}
	if len(dst) != q.NumHyper() {
		panic(badHyperLen)
	}
	copy(dst, q.m)
	copy(dst[q.dim:], q.l)
	return dst
}

func (q *VariationalNormal) SetHyper(h []float64) {
	if len(h) != q.NumHyper() {
		panic(badHyperLen)
	}
	copy(q.m, h[:q.dim])
	copy(q.l, h[q.dim:])
}
