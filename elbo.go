package svgp

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// klToPrior computes KL(q(u) ‖ p(u)) in closed form, where
// q(u) = N(m, S) and p(u) = N(m(Z), Kzz):
//
//	KL = ½ [ tr(Kzz⁻¹S) + (m(Z)−m)ᵀKzz⁻¹(m(Z)−m) − k + log det Kzz − log det S ]
//
// The log-determinants come from the Cholesky factors: LogDet on the
// prior factorization and the stored log-diagonal for S.
func (g *GPC) klToPrior(chol *mat.Cholesky) (float64, error) {
	k := g.q.Dim()

	var t mat.Dense
	if err := chol.SolveTo(&t, g.q.Cov(nil)); err != nil {
		return 0, fmt.Errorf("svgp: inducing covariance solve failed: %w", ErrSingular)
	}
	tr := mat.Trace(&t)

	mz := g.mean.Mean(nil, g.x)
	for i := range mz {
		mz[i] -= g.q.m[i]
	}
	d := mat.NewVecDense(k, mz)
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, d); err != nil {
		return 0, fmt.Errorf("svgp: inducing covariance solve failed: %w", ErrSingular)
	}
	quad := mat.Dot(d, &sol)

	return 0.5 * (tr + quad - float64(k) + chol.LogDet() - g.q.LogDetCov()), nil
}

// negELBO computes the negative evidence lower bound under the current
// parameters:
//
//	−ELBO = −scale · Σ_i E_{q(f_i)}[log p(y_i|f_i)] + KL(q(u)‖p(u))
//
// over the given batch of training rows (all rows when batch is nil).
// The likelihood sum is rescaled by totalN/batchN so that the two terms
// stay balanced when training on minibatches, and the whole objective is
// divided by the dataset size so losses are comparable across dataset
// sizes. If mcSamples > 0 the per-point expectation uses Monte Carlo
// with the given source instead of Gauss–Hermite quadrature.
func (g *GPC) negELBO(batch []int, mcSamples int, src rand.Source) (float64, error) {
	chol, _, err := g.factorizeKzz()
	if err != nil {
		return 0, err
	}

	var xb mat.Matrix = g.x
	yb := g.y
	if batch != nil {
		sub := mat.NewDense(len(batch), g.inputDim, nil)
		suby := make([]float64, len(batch))
		for bi, i := range batch {
			for j := 0; j < g.inputDim; j++ {
				sub.Set(bi, j, g.x.At(i, j))
			}
			suby[bi] = g.y[i]
		}
		xb = sub
		yb = suby
	}

	mu, s2, err := g.marginals(chol, xb)
	if err != nil {
		return 0, err
	}

	var ell float64
	for i, y := range yb {
		if mcSamples > 0 {
			ell += g.lik.ExpectedLogProbMC(mu[i], s2[i], y, mcSamples, src)
		} else {
			ell += g.lik.ExpectedLogProb(mu[i], s2[i], y, g.quadNodes, g.quadWeights)
		}
	}
	scale := float64(len(g.y)) / float64(len(yb))

	kl, err := g.klToPrior(chol)
	if err != nil {
		return 0, err
	}
	return -(scale*ell - kl) / float64(len(g.y)), nil
}
