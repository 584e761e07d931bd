package selection

import (
	"errors"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/stats"
)

// ErrBadFracSafety is returned by a Config option when FracSafety would
// fall outside (0,1).
var ErrBadFracSafety = errors.New("selection: frac_safety must be in (0,1)")

// ErrBadNumIters is returned when NumIters is set to a non-positive value.
var ErrBadNumIters = errors.New("selection: num_iters must be positive")

// Config is the selection driver's hyperparameter struct (spec.md §6's
// enumerated optimizer fields, plus FracSafety/Optimizer/BoundMethod/
// RegCoef). Construct with DefaultConfig and the With* options, matching
// the teacher's validate-or-panic functional-options pattern.
type Config struct {
	FracSafety  float64
	Optimizer   catalog.Optimizer
	BoundMethod catalog.BoundMethod

	LambdaInit   float64
	AlphaTheta   float64
	AlphaLamb    float64
	BetaVelocity float64
	BetaRMSProp  float64
	NumIters     int
	Verbose      bool

	// HyperSearch and GradientLibrary are recognized per spec.md §6 but
	// carry no behavior in this port: HyperSearch is reserved for a future
	// hyperparameter-search mode, GradientLibrary is informational only.
	HyperSearch     bool
	GradientLibrary string

	// RegCoef weights an optional ||theta|| regularization term added to the
	// barrier score S(theta) in every regime (original_source supplement,
	// §10); the GradientDescent technique does not add it. Zero disables it.
	RegCoef float64

	RL stats.RLParams
}

// Option configures a Config at construction time.
type Option func(*Config)

// WithFracSafety overrides the candidate/safety split fraction. Panics if
// frac is not in (0,1), matching the teacher's early-panic convention for
// invalid option arguments.
func WithFracSafety(frac float64) Option {
	return func(c *Config) {
		if frac <= 0 || frac >= 1 {
			panic(ErrBadFracSafety.Error())
		}
		c.FracSafety = frac
	}
}

// WithOptimizer selects the candidate-selection search technique.
func WithOptimizer(o catalog.Optimizer) Option {
	return func(c *Config) { c.Optimizer = o }
}

// WithBoundMethod selects the confidence-bound calculation strategy.
func WithBoundMethod(m catalog.BoundMethod) Option {
	return func(c *Config) { c.BoundMethod = m }
}

// WithNumIters overrides the optimizer iteration budget. Panics if n <= 0.
func WithNumIters(n int) Option {
	return func(c *Config) {
		if n <= 0 {
			panic(ErrBadNumIters.Error())
		}
		c.NumIters = n
	}
}

// WithAdamRates overrides the gradient-descent-with-duals learning rates.
func WithAdamRates(alphaTheta, alphaLamb, betaVelocity, betaRMSProp float64) Option {
	return func(c *Config) {
		c.AlphaTheta = alphaTheta
		c.AlphaLamb = alphaLamb
		c.BetaVelocity = betaVelocity
		c.BetaRMSProp = betaRMSProp
	}
}

// WithLambdaInit overrides the initial Lagrange multiplier.
func WithLambdaInit(lambda float64) Option {
	return func(c *Config) { c.LambdaInit = lambda }
}

// WithVerbose enables Config.Verbose logging.
func WithVerbose() Option {
	return func(c *Config) { c.Verbose = true }
}

// WithRegCoef sets the RL regularization coefficient.
func WithRegCoef(coef float64) Option {
	return func(c *Config) { c.RegCoef = coef }
}

// WithRLParams sets the reinforcement-learning episode parameters used
// when preparing RL-regime leaf data.
func WithRLParams(rl stats.RLParams) Option {
	return func(c *Config) { c.RL = rl }
}

// DefaultConfig returns the driver's default hyperparameters: a 0.6
// safety split, the Nelder-Mead barrier technique, ttest bounds, and
// Adam rates suited to a small-dimensional logistic-regression theta.
func DefaultConfig(opts ...Option) Config {
	c := Config{
		FracSafety:   0.6,
		Optimizer:    catalog.OptimizerNelderMead,
		BoundMethod:  catalog.BoundTTest,
		LambdaInit:   1.0,
		AlphaTheta:   0.01,
		AlphaLamb:    0.01,
		BetaVelocity: 0.9,
		BetaRMSProp:  0.999,
		NumIters:     1000,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
