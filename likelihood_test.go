package svgp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

func ghRule(n int) (nodes, weights []float64) {
	nodes = make([]float64, n)
	weights = make([]float64, n)
	quad.Hermite{}.FixedLocations(nodes, weights, math.Inf(-1), math.Inf(1))
	return nodes, weights
}

func TestLinkProbInUnitInterval(t *testing.T) {
	latents := []float64{-50, -8, -1, 0, 0.3, 5, 40}
	for _, link := range []Link{Probit{}, Logistic{}} {
		for _, f := range latents {
			p := link.Prob(f)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
		// Monotone in the latent.
		assert.Less(t, link.Prob(-1), link.Prob(1))
		assert.InDelta(t, 0.5, link.Prob(0), 1e-12)
	}
}

func TestLinkLogProbFinite(t *testing.T) {
	for _, link := range []Link{Probit{}, Logistic{}} {
		for _, f := range []float64{-500, -40, 0, 40, 500} {
			for _, y := range []float64{0, 1} {
				lp := link.LogProb(f, y)
				assert.False(t, math.IsNaN(lp))
				assert.False(t, math.IsInf(lp, 0))
				assert.LessOrEqual(t, lp, 0.0)
			}
		}
	}
}

func TestProbitLogProbDeepTail(t *testing.T) {
	var p Probit

	// Agrees with the direct computation where the CDF is accurate.
	assert.InDelta(t, math.Log(distuv.UnitNormal.CDF(-8)), p.LogProb(-8, 1), 1e-12)

	// Strictly decreasing and finite well past where Φ underflows to
	// zero, so gradients in the deep tail stay informative.
	prev := p.LogProb(-35, 1)
	for _, f := range []float64{-40, -60, -100, -300} {
		lp := p.LogProb(f, 1)
		require.False(t, math.IsInf(lp, 0))
		assert.Less(t, lp, prev, "latent %v", f)
		prev = lp
	}

	// Leading-order behavior is -f²/2 deep in the tail.
	assert.InDelta(t, -0.5*300*300, p.LogProb(-300, 1), 10)
}

func TestExpectedLogProbTinyVarianceLimit(t *testing.T) {
	nodes, weights := ghRule(20)
	b := Bernoulli{Link: Probit{}}
	// As the latent variance vanishes the expectation collapses to the
	// point evaluation.
	for _, mu := range []float64{-1.5, 0, 2} {
		want := b.Link.LogProb(mu, 1)
		got := b.ExpectedLogProb(mu, 1e-14, 1, nodes, weights)
		assert.InDelta(t, want, got, 1e-6)
	}
}

func TestExpectedLogProbMCAgreesWithQuadrature(t *testing.T) {
	nodes, weights := ghRule(20)
	b := Bernoulli{Link: Logistic{}}

	mu, variance, y := 0.4, 0.9, 1.0
	gh := b.ExpectedLogProb(mu, variance, y, nodes, weights)
	mc := b.ExpectedLogProbMC(mu, variance, y, 200000, rand.NewSource(7))
	assert.InDelta(t, gh, mc, 5e-3)

	// Same seed, same estimate.
	mc2 := b.ExpectedLogProbMC(mu, variance, y, 200000, rand.NewSource(7))
	assert.Equal(t, mc, mc2)
}

func TestPredictProbProbitClosedForm(t *testing.T) {
	nodes, weights := ghRule(40)
	b := Bernoulli{Link: Probit{}}

	// The probit fast path must agree with direct quadrature of the
	// link against the latent Gaussian.
	for _, tc := range []struct{ mu, variance float64 }{
		{0, 1}, {1.3, 0.2}, {-2, 4}, {0.5, 1e-8},
	} {
		closed := b.PredictProb(tc.mu, tc.variance, nodes, weights)

		s := math.Sqrt(2 * tc.variance)
		var sum float64
		for i, x := range nodes {
			sum += weights[i] * b.Link.Prob(tc.mu+s*x)
		}
		byQuad := sum * invSqrtPi

		assert.InDelta(t, byQuad, closed, 1e-6)
		assert.GreaterOrEqual(t, closed, 0.0)
		assert.LessOrEqual(t, closed, 1.0)
	}
}

func TestPredictProbLogistic(t *testing.T) {
	nodes, weights := ghRule(20)
	b := Bernoulli{Link: Logistic{}}

	p := b.PredictProb(0, 1, nodes, weights)
	require.InDelta(t, 0.5, p, 1e-10)
	assert.Greater(t, b.PredictProb(2, 1, nodes, weights), 0.5)
	assert.Less(t, b.PredictProb(-2, 1, nodes, weights), 0.5)
}
