package svgp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Kernel is a positive-semidefinite covariance function with learnable
// hyperparameters. Hyperparameters are exposed as a flat slice of
// unconstrained values so that an external gradient-based optimizer can
// drive them directly; positivity constraints are enforced by the kernel
// through its own reparametrization, never by rejecting raw values.
type Kernel interface {
	// Kernel returns the covariance between x and y under the current
	// hyperparameters. It must be symmetric in its arguments.
	Kernel(x, y []float64) float64
	// NumHyper returns the number of learnable hyperparameters.
	NumHyper() int
	// Hyper places the current raw hyperparameters into dst. If dst is
	// nil new memory is allocated. Hyper panics if len(dst) != NumHyper.
	Hyper(dst []float64) []float64
	// SetHyper overwrites the raw hyperparameters.
	SetHyper(h []float64)
}

var _ Kernel = &RBF{}

// RBF is a scaled radial basis function kernel,
//
//	k(x, y) = s · exp(−‖x−y‖² / (2·l²))
//
// The output scale s and length scale l are stored as logs so that the
// raw values driven by the optimizer are unconstrained while the
// effective parameters remain strictly positive. Logs also improve
// numerical conditioning.
type RBF struct {
	LogOutputScale float64 // log of the output scale (signal variance)
	LogLengthScale float64 // log of the length scale
}

// NewRBF returns an RBF kernel with the given positive output scale and
// length scale.
func NewRBF(outputScale, lengthScale float64) (*RBF, error) {
	if !(outputScale > 0) || math.IsInf(outputScale, 1) {
		return nil, fmt.Errorf("%w: output scale %v must be positive and finite", ErrConfig, outputScale)
	}
	if !(lengthScale > 0) || math.IsInf(lengthScale, 1) {
		return nil, fmt.Errorf("%w: length scale %v must be positive and finite", ErrConfig, lengthScale)
	}
	return &RBF{
		LogOutputScale: math.Log(outputScale),
		LogLengthScale: math.Log(lengthScale),
	}, nil
}

// OutputScale returns the effective output scale exp(LogOutputScale).
func (k *RBF) OutputScale() float64 { return math.Exp(k.LogOutputScale) }

// LengthScale returns the effective length scale exp(LogLengthScale).
func (k *RBF) LengthScale() float64 { return math.Exp(k.LogLengthScale) }

// Kernel evaluates the covariance between x and y. The computation stays
// in the log domain until the final exponential.
func (k *RBF) Kernel(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badStorageDim)
	}
	r := floats.Distance(x, y, 2)
	return math.Exp(k.LogOutputScale - r*r/(2*math.Exp(2*k.LogLengthScale)))
}

func (k *RBF) NumHyper() int { return 2 }

func (k *RBF) Hyper(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, k.NumHyper())
	}
	if len(dst) != k.NumHyper() {
		panic(badHyperLen)
	}
	dst[0] = k.LogOutputScale
	dst[1] = k.LogLengthScale
	return dst
}

func (k *RBF) SetHyper(h []float64) {
	if len(h) != k.NumHyper() {
		panic(badHyperLen)
	}
	k.LogOutputScale = h[0]
	k.LogLengthScale = h[1]
}
