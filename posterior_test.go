package svgp

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPriorPredictiveAtInitialization(t *testing.T) {
	ker, err := NewRBF(1.7, 0.3)
	require.NoError(t, err)
	x := mat.NewDense(6, 1, []float64{0, 0.2, 0.4, 0.6, 0.8, 1})
	y := []float64{1, 0, 1, 0, 1, 0}
	g, err := NewGPC(ker, &ConstantMean{C: 0.7}, x, y)
	require.NoError(t, err)

	// The variational distribution starts at the prior, so the
	// predictive latent distribution is the prior: constant mean and
	// full kernel variance everywhere.
	q := mat.NewDense(3, 1, []float64{0.1, 0.55, 0.93})
	mu, s2, err := g.LatentMarginals(q)
	require.NoError(t, err)
	for i := range mu {
		assert.InDelta(t, 0.7, mu[i], 1e-8)
		assert.InDelta(t, 1.7, s2[i], 1e-6)
	}
}

func TestPosteriorFullCovariance(t *testing.T) {
	g := testModel(t)
	g.state = stateFitted

	q := mat.NewDense(3, 1, []float64{0.1, 0.5, 0.9})
	dist, err := g.Posterior(q)
	require.NoError(t, err)
	require.Equal(t, 3, dist.Dim())

	// The joint distribution's marginals agree with LatentMarginals.
	mu, s2, err := g.LatentMarginals(q)
	require.NoError(t, err)
	mean := dist.Mean(nil)
	var cov mat.SymDense
	dist.CovarianceMatrix(&cov)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, mu[i], mean[i], 1e-10)
		assert.InDelta(t, s2[i], cov.At(i, i), 1e-8)
	}
}

func TestNearDuplicateInducingPoints(t *testing.T) {
	ker, err := NewRBF(1, 0.2)
	require.NoError(t, err)
	// Exactly duplicated rows make the kernel matrix rank deficient;
	// the diagonal jitter must carry the factorization.
	x := mat.NewDense(4, 1, []float64{0.3, 0.3, 0.7, 0.7})
	y := []float64{1, 1, 0, 0}
	g, err := NewGPC(ker, &ConstantMean{}, x, y)
	require.NoError(t, err)

	mu, s2, err := g.LatentMarginals(mat.NewDense(2, 1, []float64{0.3, 0.5}))
	require.NoError(t, err)
	for i := range mu {
		assert.False(t, math.IsNaN(mu[i]))
		assert.Greater(t, s2[i], 0.0)
	}
}

func TestFactorizeSurfacesSingular(t *testing.T) {
	g := testModel(t)
	// Non-finite hyperparameters poison the kernel matrix; every jitter
	// escalation fails and the error must surface, not default.
	g.kernel.SetHyper([]float64{math.NaN(), math.NaN()})

	_, _, err := g.factorizeKzz()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingular))

	_, _, err = g.LatentMarginals(mat.NewDense(1, 1, []float64{0.5}))
	assert.True(t, errors.Is(err, ErrSingular))
}

func TestJitterEscalationReported(t *testing.T) {
	g := testModel(t)
	_, used, err := g.factorizeKzz()
	require.NoError(t, err)
	// A benign matrix factorizes at the base jitter.
	assert.Equal(t, g.jitter, used)
}
