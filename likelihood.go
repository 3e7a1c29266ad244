package svgp

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Link maps a latent scalar to a Bernoulli success probability. Both
// links are monotonic and map all finite latents into [0, 1].
type Link interface {
	// Prob returns P(y = 1 | f).
	Prob(f float64) float64
	// LogProb returns log p(y | f) for a binary label y in {0, 1}.
	LogProb(f, y float64) float64
}

var (
	_ Link = Probit{}
	_ Link = Logistic{}
)

// Probit is the standard normal CDF link.
type Probit struct{}

func (Probit) Prob(f float64) float64 { return distuv.UnitNormal.CDF(f) }

func (Probit) LogProb(f, y float64) float64 {
	if y > 0.5 {
		return logCDF(f)
	}
	return logCDF(-f)
}

// logCDF is log Φ(f). The CDF is computed through erfc and keeps full
// relative accuracy down to f ≈ −30; past that the standard asymptotic
// expansion log Φ(f) ≈ −f²/2 − log(−f√(2π)) + log(1 − 1/f²) takes over,
// so the left tail stays strictly decreasing instead of flattening once
// the CDF underflows.
func logCDF(f float64) float64 {
	if f > -30 {
		return math.Log(distuv.UnitNormal.CDF(f))
	}
	return -0.5*f*f - math.Log(-f) - 0.5*math.Log(2*math.Pi) + math.Log1p(-1/(f*f))
}

// Logistic is the sigmoid link.
type Logistic struct{}

func (Logistic) Prob(f float64) float64 {
	return 1 / (1 + math.Exp(-f))
}

func (Logistic) LogProb(f, y float64) float64 {
	if y > 0.5 {
		return logSigmoid(f)
	}
	return logSigmoid(-f)
}

// logSigmoid computes log(1/(1+exp(-f))) without overflow in either tail.
func logSigmoid(f float64) float64 {
	if f >= 0 {
		return -math.Log1p(math.Exp(-f))
	}
	return f - math.Log1p(math.Exp(f))
}

// Bernoulli is the classification likelihood p(y | f) = link(f)^y ·
// (1−link(f))^(1−y). It is stateless; the expectation helpers take the
// latent marginal and the quadrature rule from the caller so that the
// same nodes are shared across all datapoints.
type Bernoulli struct {
	Link Link
}

const invSqrtPi = 1 / 1.7724538509055160272981674833411452

// ExpectedLogProb approximates E_{f ~ N(mu, variance)}[log p(y | f)]
// with the given Gauss–Hermite nodes and weights. The change of
// variables f = mu + sqrt(2·variance)·t folds the Gaussian density into
// the Hermite weight e^{−t²}.
func (b Bernoulli) ExpectedLogProb(mu, variance, y float64, nodes, weights []float64) float64 {
	s := math.Sqrt(2 * variance)
	var sum float64
	for i, t := range nodes {
		sum += weights[i] * b.Link.LogProb(mu+s*t, y)
	}
	return sum * invSqrtPi
}

// ExpectedLogProbMC approximates the same expectation by Monte Carlo
// with n samples drawn from the given source. A fixed seed makes the
// estimate reproducible.
func (b Bernoulli) ExpectedLogProbMC(mu, variance, y float64, n int, src rand.Source) float64 {
	dist := distuv.Normal{Mu: mu, Sigma: math.Sqrt(variance), Src: src}
	var sum float64
	for i := 0; i < n; i++ {
		sum += b.Link.LogProb(dist.Rand(), y)
	}
	return sum / float64(n)
}

// PredictProb returns E_{f ~ N(mu, variance)}[link(f)], the predictive
// class-1 probability after integrating out the latent. The probit link
// admits the closed form Φ(mu/sqrt(1+variance)); other links go through
// quadrature.
func (b Bernoulli) PredictProb(mu, variance float64, nodes, weights []float64) float64 {
	if _, ok := b.Link.(Probit); ok {
		return distuv.UnitNormal.CDF(mu / math.Sqrt(1+variance))
	}
	s := math.Sqrt(2 * variance)
	var sum float64
	for i, t := range nodes {
		sum += weights[i] * b.Link.Prob(mu+s*t)
	}
	return sum * invSqrtPi
}
