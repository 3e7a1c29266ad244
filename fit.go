package svgp

import (
	"context"
	"fmt"
	"log"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Reporter receives one callback per training iteration.
type Reporter interface {
	Report(iter, totalIters int, loss float64)
}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(iter, totalIters int, loss float64)

func (f ReporterFunc) Report(iter, totalIters int, loss float64) { f(iter, totalIters, loss) }

// logReporter is the default Reporter, one log line per iteration.
type logReporter struct{}

func (logReporter) Report(iter, totalIters int, loss float64) {
	log.Printf("svgp: iter %d/%d loss %f", iter, totalIters, loss)
}

// adam is a first-order update rule with bias-corrected moment
// estimates. It owns its moment state; Step mutates params in place.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64

	m, v []float64
	t    int
}

func newAdam(lr float64, dim int) *adam {
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make([]float64, dim),
		v:     make([]float64, dim),
	}
}

func (o *adam) Step(params, grads []float64) {
	o.t++
	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))
	for i, gr := range grads {
		o.m[i] = o.beta1*o.m[i] + (1-o.beta1)*gr
		o.v[i] = o.beta2*o.v[i] + (1-o.beta2)*gr*gr
		params[i] -= o.lr * (o.m[i] / c1) / (math.Sqrt(o.v[i]/c2) + o.eps)
	}
}

type fitConfig struct {
	iterations   int
	learningRate float64
	batchSize    int
	mcSamples    int
	seed         uint64
	reporter     Reporter
}

func defaultFitConfig() fitConfig {
	return fitConfig{
		iterations:   100,
		learningRate: 0.1,
		seed:         1,
		reporter:     logReporter{},
	}
}

// FitOption configures a single Fit or FitLBFGS call.
type FitOption func(*fitConfig)

// WithIterations sets the fixed iteration budget. There is no automatic
// convergence detection; the budget is the caller's.
func WithIterations(n int) FitOption {
	return func(c *fitConfig) { c.iterations = n }
}

// WithLearningRate sets the Adam learning rate.
func WithLearningRate(lr float64) FitOption {
	return func(c *fitConfig) { c.learningRate = lr }
}

// WithBatchSize enables minibatch training with the given batch size.
// The likelihood term of the objective is rescaled by totalN/batchN.
func WithBatchSize(n int) FitOption {
	return func(c *fitConfig) { c.batchSize = n }
}

// WithMonteCarloLikelihood switches the per-point likelihood expectation
// from Gauss–Hermite quadrature to seeded Monte Carlo with n samples.
func WithMonteCarloLikelihood(n int) FitOption {
	return func(c *fitConfig) { c.mcSamples = n }
}

// WithSeed sets the seed for minibatch shuffling and Monte Carlo
// sampling, making the whole fit reproducible.
func WithSeed(seed uint64) FitOption {
	return func(c *fitConfig) { c.seed = seed }
}

// WithReporter replaces the default per-iteration log line.
func WithReporter(r Reporter) FitOption {
	return func(c *fitConfig) { c.reporter = r }
}

func (g *GPC) validateFitConfig(cfg *fitConfig) error {
	if cfg.iterations <= 0 {
		return fmt.Errorf("%w: iterations %d must be positive", ErrConfig, cfg.iterations)
	}
	if !(cfg.learningRate > 0) || math.IsInf(cfg.learningRate, 1) {
		return fmt.Errorf("%w: learning rate %v must be positive and finite", ErrConfig, cfg.learningRate)
	}
	if cfg.batchSize < 0 || cfg.batchSize > len(g.y) {
		return fmt.Errorf("%w: batch size %d out of range [0, %d]", ErrConfig, cfg.batchSize, len(g.y))
	}
	if cfg.mcSamples < 0 {
		return fmt.Errorf("%w: monte carlo samples %d must be non-negative", ErrConfig, cfg.mcSamples)
	}
	if cfg.reporter == nil {
		return fmt.Errorf("%w: nil reporter", ErrConfig)
	}
	return nil
}

// Fit trains the model for a fixed budget of Adam steps on the negative
// ELBO. Each iteration is a blocking forward pass, gradient evaluation,
// and parameter update; the context is checked between iterations so
// long fits can be cancelled. A non-finite loss or gradient aborts the
// fit with ErrDiverged rather than silently continuing with divergent
// parameters. On success the model switches permanently to its fitted
// state and the parameters become read-only.
func (g *GPC) Fit(ctx context.Context, opts ...FitOption) error {
	if g.state == stateFitted {
		return ErrFitted
	}
	cfg := defaultFitConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := g.validateFitConfig(&cfg); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(cfg.seed))
	params := g.hyper(nil)
	grad := make([]float64, len(params))
	opt := newAdam(cfg.learningRate, len(params))
	settings := &fd.Settings{Formula: fd.Central}

	n := len(g.y)
	for it := 1; it <= cfg.iterations; it++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var batch []int
		if cfg.batchSize > 0 && cfg.batchSize < n {
			batch = rng.Perm(n)[:cfg.batchSize]
		}

		// Common random numbers: every evaluation within one gradient
		// computation reuses the same sample stream, otherwise the
		// finite differences would measure sampling noise.
		iterSeed := rng.Uint64()
		var evalErr error
		f := func(p []float64) float64 {
			g.setHyper(p)
			var src rand.Source
			if cfg.mcSamples > 0 {
				src = rand.NewSource(iterSeed)
			}
			loss, err := g.negELBO(batch, cfg.mcSamples, src)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return loss
		}

		loss := f(params)
		if math.IsInf(loss, 0) || math.IsNaN(loss) {
			g.setHyper(params)
			if evalErr != nil {
				return fmt.Errorf("%w: iteration %d: %w", ErrDiverged, it, evalErr)
			}
			return fmt.Errorf("%w: iteration %d", ErrDiverged, it)
		}
		fd.Gradient(grad, f, params, settings)
		if !allFinite(grad) {
			g.setHyper(params)
			if evalErr != nil {
				return fmt.Errorf("%w: gradient at iteration %d: %w", ErrDiverged, it, evalErr)
			}
			return fmt.Errorf("%w: gradient at iteration %d", ErrDiverged, it)
		}

		opt.Step(params, grad)
		g.setHyper(params)
		cfg.reporter.Report(it, cfg.iterations, loss)
	}

	g.state = stateFitted
	return nil
}

// FitLBFGS trains by running L-BFGS on the full-batch negative ELBO
// instead of a fixed budget of Adam steps, in the spirit of classic GP
// hyperparameter training. WithIterations caps the major iterations;
// batch and Monte Carlo options do not apply.
func (g *GPC) FitLBFGS(opts ...FitOption) error {
	if g.state == stateFitted {
		return ErrFitted
	}
	cfg := defaultFitConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := g.validateFitConfig(&cfg); err != nil {
		return err
	}

	var evalErr error
	f := func(p []float64) float64 {
		g.setHyper(p)
		loss, err := g.negELBO(nil, 0, nil)
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return loss
	}
	settings := &fd.Settings{Formula: fd.Central}
	problem := optimize.Problem{
		Func: f,
		Grad: func(dst, p []float64) {
			fd.Gradient(dst, f, p, settings)
		},
	}

	params := g.hyper(nil)
	result, err := optimize.Minimize(problem, params, &optimize.Settings{
		MajorIterations:   cfg.iterations,
		GradientThreshold: 1e-4,
	}, &optimize.LBFGS{})
	if result != nil && len(result.X) == len(params) {
		g.setHyper(result.X)
	} else {
		g.setHyper(params)
	}
	if err != nil {
		if evalErr != nil {
			return fmt.Errorf("svgp: lbfgs fit failed: %w: %w", err, evalErr)
		}
		return fmt.Errorf("svgp: lbfgs fit failed: %w", err)
	}

	g.state = stateFitted
	return nil
}

func allFinite(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
