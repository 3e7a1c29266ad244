package svgp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
)

// fitState tracks the one-way lifecycle of a model: parameters are
// mutable while training and frozen once fitted.
type fitState int

const (
	stateTraining fitState = iota
	stateFitted
)

// Default model configuration.
const (
	defaultJitter    = 1e-6
	defaultQuadNodes = 20

	jitterGrowth     = 10
	maxJitterRetries = 5
)

type config struct {
	link        Link
	jitter      float64
	quadNodes   int
	standardize bool
}

// Option configures a GPC at construction.
type Option func(*config)

// WithLink sets the Bernoulli link function. The default is Probit.
func WithLink(l Link) Option {
	return func(c *config) { c.link = l }
}

// WithJitter sets the base diagonal jitter added to the inducing-point
// kernel matrix before factorization. The default is 1e-6.
func WithJitter(j float64) Option {
	return func(c *config) { c.jitter = j }
}

// WithQuadratureNodes sets the number of Gauss–Hermite nodes used for
// the expected log-likelihood. The default is 20.
func WithQuadratureNodes(n int) Option {
	return func(c *config) { c.quadNodes = n }
}

// WithStandardizedInputs standardizes each input column to zero mean and
// unit variance before kernel evaluation. Queries are standardized with
// the training statistics.
func WithStandardizedInputs() Option {
	return func(c *config) { c.standardize = true }
}

// GPC is a sparse variational Gaussian process binary classifier. The
// inducing points coincide with the training inputs (the unwhitened
// parametrization), so the variational distribution covers one latent
// value per training point.
//
// The learnable parameters are the kernel hyperparameters, the mean
// function parameters, and the variational mean and covariance factor.
// They are owned exclusively by Fit while training and become read-only
// once Fit returns, after which concurrent prediction calls need no
// synchronization.
type GPC struct {
	kernel Kernel
	mean   Mean
	lik    Bernoulli
	q      *VariationalNormal

	x        *mat.Dense // training inputs, also the inducing points
	y        []float64  // binary labels in {0, 1}
	inputDim int

	meanX, stdX []float64 // input standardization; nil unless enabled

	jitter      float64
	quadNodes   []float64
	quadWeights []float64

	state fitState
}

// NewGPC builds a classifier over the given training inputs and binary
// labels. The inputs are copied; the model never mutates or re-reads the
// caller's data after construction.
func NewGPC(kernel Kernel, mean Mean, x mat.Matrix, y []float64, opts ...Option) (*GPC, error) {
	if kernel == nil {
		return nil, fmt.Errorf("%w: nil kernel", ErrConfig)
	}
	if mean == nil {
		return nil, fmt.Errorf("%w: nil mean function", ErrConfig)
	}
	if x == nil {
		return nil, fmt.Errorf("%w: nil inputs", ErrConfig)
	}
	r, c := x.Dims()
	if r == 0 {
		return nil, fmt.Errorf("%w: zero inducing points", ErrConfig)
	}
	if r != len(y) {
		return nil, fmt.Errorf("%w: %d input rows, %d labels", ErrDimensionMismatch, r, len(y))
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: label %d is %v, want 0 or 1", ErrConfig, i, v)
		}
	}

	cfg := config{
		link:      Probit{},
		jitter:    defaultJitter,
		quadNodes: defaultQuadNodes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.link == nil {
		return nil, fmt.Errorf("%w: nil link", ErrConfig)
	}
	if !(cfg.jitter > 0) || math.IsInf(cfg.jitter, 1) {
		return nil, fmt.Errorf("%w: jitter %v must be positive and finite", ErrConfig, cfg.jitter)
	}
	if cfg.quadNodes <= 0 {
		return nil, fmt.Errorf("%w: quadrature nodes %d must be positive", ErrConfig, cfg.quadNodes)
	}

	xs := mat.NewDense(r, c, nil)
	xs.Copy(x)
	ys := make([]float64, len(y))
	copy(ys, y)

	q, err := NewVariationalNormal(r)
	if err != nil {
		return nil, err
	}

	nodes := make([]float64, cfg.quadNodes)
	weights := make([]float64, cfg.quadNodes)
	quad.Hermite{}.FixedLocations(nodes, weights, math.Inf(-1), math.Inf(1))

	g := &GPC{
		kernel:      kernel,
		mean:        mean,
		lik:         Bernoulli{Link: cfg.link},
		q:           q,
		x:           xs,
		y:           ys,
		inputDim:    c,
		jitter:      cfg.jitter,
		quadNodes:   nodes,
		quadWeights: weights,
	}
	if cfg.standardize {
		g.meanX, g.stdX = MeanStdMat(xs)
	}

	// Start the variational distribution at the prior, q(u) = p(u), so
	// the KL term opens at zero and the first gradient steps are driven
	// by the data alone.
	chol, _, err := g.factorizeKzz()
	if err != nil {
		return nil, err
	}
	var l mat.TriDense
	chol.LTo(&l)
	if err := g.q.SetCholFactor(&l); err != nil {
		return nil, err
	}
	if err := g.q.SetMean(g.mean.Mean(nil, g.x)); err != nil {
		return nil, err
	}
	return g, nil
}

// NumInducing returns the number of inducing points.
func (g *GPC) NumInducing() int { return g.q.Dim() }

// Variational returns the model's variational distribution. Mutating it
// after Fit invalidates the fitted posterior.
func (g *GPC) Variational() *VariationalNormal { return g.q }

// numHyper is the total length of the flattened parameter vector.
func (g *GPC) numHyper() int {
	return g.kernel.NumHyper() + g.mean.NumHyper() + g.q.NumHyper()
}

// hyper flattens all learnable parameters into dst in a fixed order:
// kernel, mean, variational.
func (g *GPC) hyper(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, g.numHyper())
	}
	if len(dst) != g.numHyper() {
		panic(badHyperLen)
	}
	nk := g.kernel.NumHyper()
	nm := g.mean.NumHyper()
	g.kernel.Hyper(dst[:nk])
	g.mean.Hyper(dst[nk : nk+nm])
	g.q.Hyper(dst[nk+nm:])
	return dst
}

// setHyper scatters the flattened parameter vector back into the model.
func (g *GPC) setHyper(h []float64) {
	if len(h) != g.numHyper() {
		panic(badHyperLen)
	}
	nk := g.kernel.NumHyper()
	nm := g.mean.NumHyper()
	g.kernel.SetHyper(h[:nk])
	g.mean.SetHyper(h[nk : nk+nm])
	g.q.SetHyper(h[nk+nm:])
}

// checkQuery validates query dimensions against the training inputs.
func (g *GPC) checkQuery(x mat.Matrix) (rows int, err error) {
	if x == nil {
		return 0, fmt.Errorf("%w: nil query", ErrConfig)
	}
	r, c := x.Dims()
	if c != g.inputDim {
		return 0, fmt.Errorf("%w: query dimension %d, trained on %d", ErrDimensionMismatch, c, g.inputDim)
	}
	if r == 0 {
		return 0, fmt.Errorf("%w: empty query", ErrConfig)
	}
	return r, nil
}

// PredictProba returns the predictive probability of class 1 at each
// query row, integrating the link over the latent posterior marginals.
func (g *GPC) PredictProba(x mat.Matrix) ([]float64, error) {
	if g.state != stateFitted {
		return nil, ErrNotFitted
	}
	mu, s2, err := g.LatentMarginals(x)
	if err != nil {
		return nil, err
	}
	p := make([]float64, len(mu))
	for i := range p {
		p[i] = g.lik.PredictProb(mu[i], s2[i], g.quadNodes, g.quadWeights)
	}
	return p, nil
}

// PredictClass returns the hard 0/1 classification at each query row,
// thresholding the predictive probability at 0.5.
func (g *GPC) PredictClass(x mat.Matrix) ([]int, error) {
	p, err := g.PredictProba(x)
	if err != nil {
		return nil, err
	}
	cls := make([]int, len(p))
	for i, v := range p {
		if v > 0.5 {
			cls[i] = 1
		}
	}
	return cls, nil
}
