// Package svgp implements sparse variational Gaussian process binary
// classification.
//
// A GPC couples an RBF kernel and a prior mean function with a
// free-form Gaussian variational distribution over the latent function
// values at the inducing points, which coincide with the training
// inputs (the unwhitened parametrization). Training maximizes the
// evidence lower bound
//
//	ELBO = Σ_i E_{q(f_i)}[log p(y_i|f_i)] − KL(q(u) ‖ p(u))
//
// with a fixed budget of first-order steps; the per-point likelihood
// expectation is approximated by Gauss–Hermite quadrature or seeded
// Monte Carlo. Prediction maps the latent posterior through a Bernoulli
// link (probit or logistic) to class probabilities.
//
// All learnable parameters are exposed as one flat vector of
// unconstrained values, with positivity constraints handled by log
// reparametrization inside each component, so gradients come from any
// collaborator that can differentiate a scalar function of a vector.
package svgp
