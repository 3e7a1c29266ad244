package svgp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// minVariance floors predictive variances: the subtraction in the
// posterior variance formula can land a hair below zero from roundoff.
const minVariance = 1e-12

// factorizeKzz builds the inducing-point kernel matrix under the current
// hyperparameters and factorizes it, escalating the diagonal jitter a
// bounded number of times if the factorization fails. It returns the
// factorization and the jitter that succeeded.
func (g *GPC) factorizeKzz() (*mat.Cholesky, float64, error) {
	jitter := g.jitter
	var kzz *mat.SymDense
	for try := 0; try < maxJitterRetries; try++ {
		kzz = kernelMatrixSym(kzz, g.x, g.meanX, g.stdX, g.kernel, jitter)
		var chol mat.Cholesky
		if chol.Factorize(kzz) {
			return &chol, jitter, nil
		}
		jitter *= jitterGrowth
	}
	return nil, jitter, fmt.Errorf("svgp: inducing covariance not factorizable after %d jitter escalations (last jitter %.3g, condition estimate %.3g): %w",
		maxJitterRetries, jitter/jitterGrowth, condEstimate(kzz), ErrSingular)
}

// condEstimate reports the 1-norm condition number of the matrix that
// refused to factorize, or NaN if the matrix contains non-finite values
// that would derail the estimator itself.
func condEstimate(a *mat.SymDense) float64 {
	n := a.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return math.NaN()
			}
		}
	}
	return mat.Cond(a, 1)
}

// marginals computes the latent posterior mean and variance at each row
// of x under the unwhitened strategy:
//
//	mean = m(x) + Kzxᵀ Kzz⁻¹ (m_q − m(Z))
//	var  = Kxx − Kzxᵀ Kzz⁻¹ Kzx + Kzxᵀ Kzz⁻¹ S Kzz⁻¹ Kzx
//
// computed one diagonal term at a time rather than forming the full
// covariance.
func (g *GPC) marginals(chol *mat.Cholesky, x mat.Matrix) (mu, s2 []float64, err error) {
	qn, _ := x.Dims()
	k := g.q.Dim()

	kzx := kernelMatrix(nil, g.x, x, g.meanX, g.stdX, g.kernel)
	a := mat.NewDense(k, qn, nil)
	if err := chol.SolveTo(a, kzx); err != nil {
		return nil, nil, fmt.Errorf("svgp: inducing covariance solve failed: %w", ErrSingular)
	}

	mz := g.mean.Mean(nil, g.x)
	for i := range mz {
		mz[i] = g.q.m[i] - mz[i]
	}
	d := mat.NewVecDense(k, mz)

	mstar := g.mean.Mean(nil, x)
	s := g.q.Cov(nil)

	mu = make([]float64, qn)
	s2 = make([]float64, qn)
	row := make([]float64, g.inputDim)
	for j := 0; j < qn; j++ {
		aj := a.ColView(j)
		kj := kzx.ColView(j)
		mu[j] = mstar[j] + mat.Dot(aj, d)

		rowScaled(row, j, x, g.meanX, g.stdX)
		v := g.kernel.Kernel(row, row) - mat.Dot(kj, aj) + mat.Inner(aj, s, aj)
		if v < minVariance {
			v = minVariance
		}
		s2[j] = v
	}
	return mu, s2, nil
}

// LatentMarginals returns the mean and variance of the latent posterior
// at each query row under the current parameter values.
func (g *GPC) LatentMarginals(x mat.Matrix) (mu, s2 []float64, err error) {
	if _, err := g.checkQuery(x); err != nil {
		return nil, nil, err
	}
	chol, _, err := g.factorizeKzz()
	if err != nil {
		return nil, nil, err
	}
	return g.marginals(chol, x)
}

// Posterior returns the joint latent posterior at the query rows as a
// multivariate normal. Failures to form a positive-definite predictive
// covariance are surfaced, never papered over with a fallback.
func (g *GPC) Posterior(x mat.Matrix) (*distmv.Normal, error) {
	if g.state != stateFitted {
		return nil, ErrNotFitted
	}
	qn, err := g.checkQuery(x)
	if err != nil {
		return nil, err
	}
	chol, _, err := g.factorizeKzz()
	if err != nil {
		return nil, err
	}

	k := g.q.Dim()
	kzx := kernelMatrix(nil, g.x, x, g.meanX, g.stdX, g.kernel)
	a := mat.NewDense(k, qn, nil)
	if err := chol.SolveTo(a, kzx); err != nil {
		return nil, fmt.Errorf("svgp: inducing covariance solve failed: %w", ErrSingular)
	}

	mz := g.mean.Mean(nil, g.x)
	for i := range mz {
		mz[i] = g.q.m[i] - mz[i]
	}
	d := mat.NewVecDense(k, mz)

	mu := g.mean.Mean(nil, x)
	for j := 0; j < qn; j++ {
		mu[j] += mat.Dot(a.ColView(j), d)
	}

	// cov = Kxx − Kzxᵀ A + Aᵀ S A, symmetrized against roundoff.
	kxx := kernelMatrixSym(nil, x, g.meanX, g.stdX, g.kernel, 0)
	var kxa mat.Dense
	kxa.Mul(kzx.T(), a)
	var sa mat.Dense
	sa.Mul(g.q.Cov(nil), a)
	var asa mat.Dense
	asa.Mul(a.T(), &sa)

	cov := mat.NewSymDense(qn, nil)
	for i := 0; i < qn; i++ {
		for j := i; j < qn; j++ {
			sub := 0.5 * (kxa.At(i, j) + kxa.At(j, i))
			add := 0.5 * (asa.At(i, j) + asa.At(j, i))
			cov.SetSym(i, j, kxx.At(i, j)-sub+add)
		}
	}

	dist, ok := distmv.NewNormal(mu, cov, nil)
	if !ok {
		return nil, fmt.Errorf("svgp: predictive covariance not positive definite: %w", ErrSingular)
	}
	return dist, nil
}
