// Package stats implements the per-leaf data preparation, the unbiased
// zhat sampler, and the Student-t confidence bounds of spec §4.3. It sits
// between dataset/model (inputs) and tree (the consumer that caches and
// propagates the bounds computed here).
//
// Errors:
//
//	ErrUnsupportedBoundMethod - bound_method is not one of ttest/manual/random.
//	ErrUnsupportedRegime      - regime is neither supervised nor RL.
//	ErrNumericallyDegenerate  - stddev is zero or fewer than two samples (recovered to ±Inf, not fatal).
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/katalvlaran/seldonian-core/catalog"
)

var (
	ErrUnsupportedBoundMethod = errors.New("stats: unsupported bound method")
	ErrUnsupportedRegime      = errors.New("stats: unsupported regime")
	ErrNumericallyDegenerate  = errors.New("stats: degenerate sample (stddev=0 or n<2)")
)

// stddev returns the sample standard deviation of z, or (0, false) when
// fewer than two samples are present.
func stddev(z []float64) (float64, bool) {
	if len(z) < 2 {
		return 0, false
	}
	return stat.StdDev(z, nil), true
}

// tinv returns the two-sided Student-t quantile at confidence 1-delta with
// the given degrees of freedom, via gonum's Student-t distribution.
func tinv(oneMinusDelta float64, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return dist.Quantile(oneMinusDelta)
}

// degenerateBound is the fallback applied when stddev/datasize make the
// t-bound undefined: the affected side collapses to infinity rather than
// propagating NaN (spec §7, NumericallyDegenerate).
func degenerateBound(mean float64, side string) float64 {
	switch side {
	case "lower":
		return math.Inf(-1)
	case "upper":
		return math.Inf(1)
	default:
		return mean
	}
}

// ttestHalfWidth computes s/sqrt(n) * tinv(1-delta, n-1), the half-width
// shared by both the safety-test and candidate-selection bounds (the
// latter doubles it per spec §4.3).
func ttestHalfWidth(z []float64, datasize int, delta float64) (halfWidth float64, ok bool) {
	s, ok := stddev(z)
	if !ok || datasize < 2 {
		return 0, false
	}
	t := tinv(1.0-delta, float64(datasize-1))
	return s / math.Sqrt(float64(datasize)) * t, true
}

// Bound computes the [lower, upper] confidence interval for a base leaf's
// estimator samples z, given which sides are needed, the branch
// (candidate-selection doubles the half-width to predict safety-test
// survival; safety-test does not), and the bound method.
//
// method == BoundManual returns (manualLower, manualUpper) literally.
// method == BoundRandom returns arbitrary small integers, never for
// production use (spec §4.3).
func Bound(method catalog.BoundMethod, branch catalog.Branch, z []float64, datasize int, delta float64, willLower, willUpper bool, manualLower, manualUpper float64, rng RandIntn) (lower, upper float64, err error) {
	switch method {
	case catalog.BoundManual:
		return manualLower, manualUpper, nil

	case catalog.BoundRandom:
		lower = float64(rng.Intn(2))
		upper = float64(rng.Intn(2) + 2)
		return lower, upper, nil

	case catalog.BoundTTest:
		return ttestBound(branch, z, datasize, delta, willLower, willUpper)

	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedBoundMethod, method)
	}
}

// RandIntn is the minimal RNG capability Bound needs for BoundRandom; it is
// satisfied by *rand.Rand.
type RandIntn interface {
	Intn(n int) int
}

func ttestBound(branch catalog.Branch, z []float64, datasize int, delta float64, willLower, willUpper bool) (lower, upper float64, err error) {
	mean := stat.Mean(z, nil)
	inflate := 1.0
	if branch == catalog.BranchCandidate {
		inflate = 2.0
	}

	// Two-sided requests split delta across both tails (spec §4.3).
	splitDelta := delta
	if willLower && willUpper {
		splitDelta = delta / 2
	}

	halfWidth, ok := ttestHalfWidth(z, datasize, splitDelta)
	if !ok {
		lower = degenerateBound(mean, "lower")
		upper = degenerateBound(mean, "upper")
		return lower, upper, nil
	}

	lower = math.Inf(-1)
	upper = math.Inf(1)
	if willLower {
		lower = mean - inflate*halfWidth
	}
	if willUpper {
		upper = mean + inflate*halfWidth
	}
	return lower, upper, nil
}
