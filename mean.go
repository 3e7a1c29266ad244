package svgp

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mean is a prior mean function over inputs. Like Kernel, it exposes its
// learnable parameters as a flat slice of unconstrained values.
type Mean interface {
	// Mean places the prior mean of each of the n rows of x into dst.
	// If dst is nil new memory is allocated. Mean panics if
	// len(dst) != n.
	Mean(dst []float64, x RowMatrix) []float64
	NumHyper() int
	Hyper(dst []float64) []float64
	SetHyper(h []float64)
}

// RowMatrix is the minimal matrix view a mean function needs.
type RowMatrix interface {
	Dims() (r, c int)
	At(i, j int) float64
}

var (
	_ Mean = &ConstantMean{}
	_ Mean = ZeroMean{}
)

// ConstantMean is a constant prior mean with one learnable scalar.
type ConstantMean struct {
	C float64
}

func (m *ConstantMean) Mean(dst []float64, x RowMatrix) []float64 {
	r, _ := x.Dims()
	if dst == nil {
		dst = make([]float64, r)
	}
	if len(dst) != r {
		panic(badStorageDim)
	}
	for i := range dst {
		dst[i] = m.C
	}
	return dst
}

func (m *ConstantMean) NumHyper() int { return 1 }

func (m *ConstantMean) Hyper(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, 1)
	}
	if len(dst) != 1 {
		panic(badHyperLen)
	}
	dst[0] = m.C
	return dst
}

func (m *ConstantMean) SetHyper(h []float64) {
	if len(h) != 1 {
		panic(badHyperLen)
	}
	m.C = h[0]
}

// SetFromLabels initializes the constant to the probit quantile of the
// label base rate, clamped away from 0 and 1. A reasonable starting
// point for binary classification: a dataset that is mostly ones pulls
// the prior mean up before any gradient step is taken.
func (m *ConstantMean) SetFromLabels(y []float64) {
	rate := stat.Mean(y, nil)
	rate = math.Min(math.Max(rate, 0.05), 0.95)
	m.C = distuv.UnitNormal.Quantile(rate)
}

// ZeroMean is the trivial zero prior mean. It has no parameters.
type ZeroMean struct{}

func (ZeroMean) Mean(dst []float64, x RowMatrix) []float64 {
	r, _ := x.Dims()
	if dst == nil {
		dst = make([]float64, r)
	}
	if len(dst) != r {
		panic(badStorageDim)
	}
	for i := range dst {
		dst[i] = 0
	}
	return dst
}

func (ZeroMean) NumHyper() int { return 0 }

func (ZeroMean) Hyper(dst []float64) []float64 {
	if dst == nil {
		return nil
	}
	if len(dst) != 0 {
		panic(badHyperLen)
	}
	return dst
}
func (ZeroMean) SetHyper(h []float64) {
	if len(h) != 0 {
		panic(badHyperLen)
	}
}
