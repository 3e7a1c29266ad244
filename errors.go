package svgp

import "errors"

// Sentinel errors returned by the svgp package.
var (
	// ErrSingular indicates that the inducing-point kernel matrix could not
	// be factorized, even after the bounded jitter escalation.
	ErrSingular = errors.New("svgp: kernel matrix singular or near singular")

	// ErrDimensionMismatch indicates that input, label, or query dimensions
	// disagree with the dimensions the model was constructed with.
	ErrDimensionMismatch = errors.New("svgp: dimension mismatch")

	// ErrConfig indicates an invalid hyperparameter or construction argument.
	ErrConfig = errors.New("svgp: invalid configuration")

	// ErrNotFitted indicates that a prediction was requested before Fit.
	ErrNotFitted = errors.New("svgp: model has not been fitted")

	// ErrFitted indicates that Fit was called on an already-fitted model.
	// The switch from training to evaluation is one-way.
	ErrFitted = errors.New("svgp: model already fitted")

	// ErrDiverged indicates that the loss or its gradient became non-finite
	// during training. The offending iteration is aborted rather than
	// silently skipped.
	ErrDiverged = errors.New("svgp: non-finite loss during fit")
)

// Panic messages for internal storage misuse. These mirror the error
// sentinels but fire only on programmer error, never on bad data.
const (
	badStorageDim = "svgp: bad storage dimension"
	badHyperLen   = "svgp: hyperparameter length mismatch"
)
