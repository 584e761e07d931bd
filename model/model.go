// Package model describes the capability set every Seldonian model must
// offer. Per spec §9's design note, this is a duck-typed record of function
// pointers rather than an interface hierarchy: the parse tree and the
// selection driver depend only on this struct, never on a concrete model
// identity, and loss gradients are resolved by name once at construction
// time instead of through reflection (no "gradient_<name>" lookup).
package model

import (
	"errors"
	"fmt"
)

// ErrUnknownStatistic is returned by EvaluateStatistic/SampleFromStatistic
// when asked for a statistic name the model does not implement.
var ErrUnknownStatistic = errors.New("model: unknown statistic")

// ErrNoGradient is returned by Gradient when the model was not constructed
// with a gradient function for the requested loss name.
var ErrNoGradient = errors.New("model: no gradient registered for loss")

// Data bundles whatever per-leaf inputs a model's statistic evaluators need.
// Supervised regimes populate Features/Labels; the RL regime populates
// Dataframe-derived fields. Exactly one of the two shapes is populated for
// any given call, decided by the caller's regime.
type Data struct {
	// Features is the supervised feature matrix, rows in observation order.
	Features [][]float64
	// Labels is the supervised label vector.
	Labels []float64

	// EpisodeRewardSums is the RL per-episode discounted, normalized return.
	EpisodeRewardSums []float64

	// GroupIndex marks, per row, which of pair_difference's two groups
	// (0 or 1) that row belongs to; populated by PrepareLeafData for the
	// pair_difference measure. Nil for every other measure.
	GroupIndex []int
}

// GradientFunc computes the gradient of a loss with respect to theta given
// feature matrix X and label vector Y.
type GradientFunc func(theta []float64, X [][]float64, Y []float64) []float64

// StatisticFunc evaluates the mean of a named statistic given model weights
// and data.
type StatisticFunc func(theta []float64, data *Data) (float64, error)

// SamplerFunc returns per-example unbiased contributions to a named
// statistic, whose mean equals StatisticFunc's result (spec §3).
type SamplerFunc func(theta []float64, data *Data) ([]float64, error)

// FitFunc produces an initial parameter vector from training data.
type FitFunc func(X [][]float64, Y []float64) []float64

// PredictFunc scores X under parameters theta.
type PredictFunc func(theta []float64, X [][]float64) []float64

// Model is the capability set consumed by tree.Propagate and
// selection.Driver. Construct with New and the With* options; all function
// fields except the optional gradients are required.
type Model struct {
	Predict             PredictFunc
	Fit                 FitFunc
	EvaluateStatistic   map[string]StatisticFunc
	SampleFromStatistic map[string]SamplerFunc
	gradients           map[string]GradientFunc
}

// Option configures a Model at construction time.
type Option func(*Model)

// WithStatistic registers the evaluator and sampler pair for a named
// statistic (e.g. "PR", "FPR", or a caller-defined custom measure).
func WithStatistic(name string, eval StatisticFunc, sample SamplerFunc) Option {
	return func(m *Model) {
		m.EvaluateStatistic[name] = eval
		m.SampleFromStatistic[name] = sample
	}
}

// WithGradient registers the gradient of the named loss, resolved once here
// instead of via name-based reflection at call time.
func WithGradient(lossName string, grad GradientFunc) Option {
	return func(m *Model) { m.gradients[lossName] = grad }
}

// New constructs a Model from a predict/fit pair plus zero or more
// statistic/gradient registrations.
func New(predict PredictFunc, fit FitFunc, opts ...Option) *Model {
	m := &Model{
		Predict:             predict,
		Fit:                 fit,
		EvaluateStatistic:   make(map[string]StatisticFunc),
		SampleFromStatistic: make(map[string]SamplerFunc),
		gradients:           make(map[string]GradientFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate computes the mean of statistic name at theta over data.
func (m *Model) Evaluate(name string, theta []float64, data *Data) (float64, error) {
	f, ok := m.EvaluateStatistic[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatistic, name)
	}
	return f(theta, data)
}

// Sample returns the unbiased per-example estimator vector for statistic
// name at theta over data.
func (m *Model) Sample(name string, theta []float64, data *Data) ([]float64, error) {
	f, ok := m.SampleFromStatistic[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatistic, name)
	}
	return f(theta, data)
}

// Gradient returns the registered gradient function for lossName, if any.
func (m *Model) Gradient(lossName string) (GradientFunc, error) {
	g, ok := m.gradients[lossName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoGradient, lossName)
	}
	return g, nil
}
