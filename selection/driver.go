// Package selection implements the candidate/safety split and the two
// constrained-optimization techniques of spec.md §4.5: a derivative-free
// barrier search via gonum/optimize, and a hand-rolled gradient-descent-
// with-dual-ascent (Adam) loop. Both share the same scoring function and
// exit contract.
//
// Errors:
//
//	ErrUnsupportedOptimizer - Config.Optimizer is not one of the catalog's supported names.
//	ErrNoSolutionFound      - gradient descent completed without a feasible iterate.
package selection

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/dataset"
	"github.com/katalvlaran/seldonian-core/gradient"
	"github.com/katalvlaran/seldonian-core/model"
	"github.com/katalvlaran/seldonian-core/tree"
)

// BIG is the barrier penalty added to the score once any constraint tree
// is found to violate its predicted bound (spec.md §4.5).
const BIG = 1e5

// NSF is the sentinel solution returned when no feasible iterate is found.
const NSF = "NSF"

var (
	ErrUnsupportedOptimizer = errors.New("selection: unsupported optimizer")
	ErrNoSolutionFound      = errors.New("selection: no feasible solution found")
)

// PrimaryFunc scores model parameters against a primary objective on
// feature matrix X and label vector Y; lower is better.
type PrimaryFunc func(theta []float64, X [][]float64, Y []float64) float64

// PrimaryGradFunc is the gradient of a PrimaryFunc, supplied by the
// caller when the gradient-descent technique is used with an exact
// primary gradient (spec.md §4.5, "user-supplied primary gradient").
type PrimaryGradFunc func(theta []float64, X [][]float64, Y []float64) []float64

// Result is the driver's exit contract (spec.md §4.5/§7): PassedSafety is
// true iff every constraint tree's root upper bound was <= 0 on the
// safety split; Solution is nil and NoSolution is true iff the optimizer
// never recorded a feasible iterate, the Go-typed equivalent of the
// original's "NSF" sentinel (use String for the literal text).
type Result struct {
	PassedSafety bool
	Solution     []float64
	NoSolution   bool
}

// String renders the solution half of the exit contract: the literal
// "NSF" sentinel when no feasible iterate was found, else the theta
// vector.
func (r Result) String() string {
	if r.NoSolution {
		return NSF
	}
	return fmt.Sprintf("%v", r.Solution)
}

// Driver owns one selection run: the dataset split, the parse trees for
// every behavioral constraint, the model, and the primary objective.
type Driver struct {
	Trees   []*tree.ParseTree
	Model   *model.Model
	Primary PrimaryFunc

	// PrimaryGrad supplies an exact gradient of Primary for the
	// GradientDescent technique; nil falls back to central finite
	// differences over Primary itself (spec.md §4.5's
	// "user-supplied primary gradient... finite-difference fallback").
	PrimaryGrad PrimaryGradFunc

	candidate, safety *dataset.Dataset
	nSafety           int
	cfg               Config
}

// NewDriver splits ds per cfg.FracSafety and wires the constraint trees,
// model, and primary objective into a single run.
func NewDriver(ds *dataset.Dataset, trees []*tree.ParseTree, m *model.Model, primary PrimaryFunc, cfg Config) (*Driver, error) {
	candidate, safety, err := ds.Split(cfg.FracSafety)
	if err != nil {
		return nil, err
	}
	return &Driver{
		Trees:     trees,
		Model:     m,
		Primary:   primary,
		candidate: candidate,
		safety:    safety,
		nSafety:   safety.NRows(),
		cfg:       cfg,
	}, nil
}

// Run executes the build -> assign_deltas -> assign_bounds_needed ->
// optimize -> safety-test state machine of spec.md §4.5 and returns the
// exit contract. theta0 seeds the search; pass nil to derive it from
// d.Model.Fit on the candidate split.
func (d *Driver) Run(theta0 []float64) (Result, error) {
	for _, t := range d.Trees {
		if err := t.AssignDeltas("equal"); err != nil {
			return Result{}, err
		}
		t.AssignBoundsNeeded()
	}

	if theta0 == nil {
		X, Y := d.candidateXY()
		theta0 = d.Model.Fit(X, Y)
	}

	var thetaStar []float64
	var err error
	switch d.cfg.Optimizer {
	case catalog.OptimizerNelderMead, catalog.OptimizerBFGS:
		thetaStar, err = d.runBarrier(theta0)
	case catalog.OptimizerGradient:
		thetaStar, err = d.runGradientDescent(theta0)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedOptimizer, d.cfg.Optimizer)
	}
	if errors.Is(err, ErrNoSolutionFound) {
		return Result{NoSolution: true}, nil
	}
	if err != nil {
		return Result{}, err
	}

	passed, err := d.safetyTest(thetaStar)
	if err != nil {
		return Result{}, err
	}
	return Result{PassedSafety: passed, Solution: thetaStar}, nil
}

// score implements S(theta) of spec.md §4.5: primary loss on the
// candidate split plus a barrier term. The first violating tree (in list
// order) overwrites the score with BIG; every violating tree's upper
// bound is then added, regardless.
func (d *Driver) score(theta []float64) float64 {
	X, Y := d.candidateXY()
	s := d.Primary(theta, X, Y)
	if d.cfg.RegCoef != 0 {
		s += d.cfg.RegCoef * floats.Norm(theta, 2)
	}

	predictFail := false
	for _, t := range d.Trees {
		t.Reset(false)
		err := t.Propagate(theta, d.candidate, d.Model, tree.PropagateConfig{
			BoundMethod: d.cfg.BoundMethod,
			Branch:      catalog.BranchCandidate,
			NSafety:     d.nSafety,
			RL:          d.cfg.RL,
		})
		if err != nil {
			return BIG
		}
		upper := t.Root.Upper
		if upper > 0 {
			if !predictFail {
				predictFail = true
				s = BIG
			}
			s += upper
		}
	}
	if d.cfg.Verbose {
		for _, t := range d.Trees {
			log.Printf("selection: %s", t.Root.DescribeBound())
		}
		log.Printf("selection: score(theta=%v) = %g (predict_fail=%v)", theta, s, predictFail)
	}
	return s
}

// candidateXY assembles the primary objective's feature matrix and label
// vector from the candidate split, mirroring stats.prepareSupervised's
// feature assembly exactly: sensitive columns are dropped unless
// IncludeSensitiveColumns is set, and an intercept column of 1.0 is
// prepended when IncludeIntercept is set. Without this, Model.Fit and the
// primary objective would score a different feature space than the one
// the PR/leaf statistics evaluate theta against (candidate_selection.py
// 90-101).
func (d *Driver) candidateXY() ([][]float64, []float64) {
	if d.candidate.Meta.LabelColumn == "" {
		return d.candidate.Rows, nil
	}
	labelIdx, ok := d.candidate.ColumnIndex(d.candidate.Meta.LabelColumn)
	if !ok {
		return d.candidate.Rows, nil
	}
	sensitiveIdx := make(map[int]struct{}, len(d.candidate.Meta.SensitiveColumns))
	if !d.candidate.IncludeSensitiveColumns {
		for _, c := range d.candidate.Meta.SensitiveColumns {
			if idx, ok := d.candidate.ColumnIndex(c); ok {
				sensitiveIdx[idx] = struct{}{}
			}
		}
	}

	X := make([][]float64, len(d.candidate.Rows))
	Y := make([]float64, len(d.candidate.Rows))
	for i, row := range d.candidate.Rows {
		Y[i] = row[labelIdx]
		feat := make([]float64, 0, len(row))
		if d.candidate.IncludeIntercept {
			feat = append(feat, 1.0)
		}
		for j, v := range row {
			if j == labelIdx {
				continue
			}
			if _, dropped := sensitiveIdx[j]; dropped {
				continue
			}
			feat = append(feat, v)
		}
		X[i] = feat
	}
	return X, Y
}

// runBarrier hands score to gonum/optimize.Minimize with NelderMead
// (derivative-free default) or BFGS (gradient-based alternative, given a
// central finite-difference gradient of score).
func (d *Driver) runBarrier(theta0 []float64) ([]float64, error) {
	var method optimize.Method
	switch d.cfg.Optimizer {
	case catalog.OptimizerNelderMead:
		method = &optimize.NelderMead{}
	case catalog.OptimizerBFGS:
		method = &optimize.BFGS{}
	}

	problem := optimize.Problem{Func: d.score}
	if d.cfg.Optimizer == catalog.OptimizerBFGS {
		problem.Grad = func(grad, x []float64) {
			copy(grad, finiteDifferencePrimaryGrad(x, d.score))
		}
	}
	settings := &optimize.Settings{MajorIterations: d.cfg.NumIters}

	result, err := optimize.Minimize(problem, theta0, settings, method)
	if err != nil {
		return nil, fmt.Errorf("selection: barrier optimization failed: %w", err)
	}
	return result.X, nil
}

// runGradientDescent implements the single-constraint Adam-plus-dual-
// ascent loop of spec.md §4.5. When more than one tree is supplied, their
// upper bounds and gradients are summed, an extension consistent with the
// Lagrangian's additivity across independent constraints.
func (d *Driver) runGradientDescent(theta0 []float64) ([]float64, error) {
	const epsilon = 1e-8
	dim := len(theta0)
	theta := append([]float64(nil), theta0...)
	lambda := d.cfg.LambdaInit

	mMoment := make([]float64, dim)
	vMoment := make([]float64, dim)

	type iterate struct {
		theta   []float64
		primary float64
		upper   float64
	}
	var feasible []iterate

	X, Y := d.candidateXY()

	for step := 1; step <= d.cfg.NumIters; step++ {
		upperSum, upperGrad, err := d.sumUpperBoundsAndGradient(theta)
		if err != nil {
			return nil, err
		}

		var primaryGrad []float64
		if d.PrimaryGrad != nil {
			primaryGrad = d.PrimaryGrad(theta, X, Y)
		} else {
			primaryGrad = finiteDifferencePrimaryGrad(theta, func(th []float64) float64 { return d.Primary(th, X, Y) })
		}

		grad := make([]float64, dim)
		for i := range grad {
			grad[i] = primaryGrad[i] + lambda*upperGrad[i]
		}

		for i := range theta {
			mMoment[i] = d.cfg.BetaVelocity*mMoment[i] + (1-d.cfg.BetaVelocity)*grad[i]
			vMoment[i] = d.cfg.BetaRMSProp*vMoment[i] + (1-d.cfg.BetaRMSProp)*grad[i]*grad[i]
			mHat := mMoment[i] / (1 - math.Pow(d.cfg.BetaVelocity, float64(step)))
			vHat := vMoment[i] / (1 - math.Pow(d.cfg.BetaRMSProp, float64(step)))
			theta[i] -= d.cfg.AlphaTheta * mHat / (math.Sqrt(vHat) + epsilon)
		}

		lambda = math.Max(0, lambda+d.cfg.AlphaLamb*upperSum)

		// Re-score the post-update theta so the recorded (theta, primary,
		// upper) triple and the feasibility test all refer to the same
		// point; scoring the pre-update theta here would record an
		// iterate whose true upper bound was never checked.
		postUpperSum, _, err := d.sumUpperBoundsAndGradient(theta)
		if err != nil {
			return nil, err
		}
		postPrimary := d.Primary(theta, X, Y)

		if postUpperSum <= 0 {
			feasible = append(feasible, iterate{theta: append([]float64(nil), theta...), primary: postPrimary, upper: postUpperSum})
		}
		if d.cfg.Verbose {
			log.Printf("selection: iter %d theta=%v primary=%g upperBound=%g lambda=%g", step, theta, postPrimary, postUpperSum, lambda)
		}
	}

	if len(feasible) == 0 {
		return nil, ErrNoSolutionFound
	}
	best := feasible[0]
	for _, it := range feasible[1:] {
		if it.primary < best.primary {
			best = it
		}
	}
	return best.theta, nil
}

func (d *Driver) sumUpperBoundsAndGradient(theta []float64) (float64, []float64, error) {
	grad := make([]float64, len(theta))
	var sum float64
	for _, t := range d.Trees {
		t.Reset(false)
		cfg := tree.PropagateConfig{BoundMethod: d.cfg.BoundMethod, Branch: catalog.BranchCandidate, NSafety: d.nSafety, RL: d.cfg.RL}
		if err := t.Propagate(theta, d.candidate, d.Model, cfg); err != nil {
			return 0, nil, err
		}
		sum += t.Root.Upper

		g, err := gradient.Of(t, theta, d.candidate, d.Model, gradient.Config{BoundMethod: d.cfg.BoundMethod, Branch: catalog.BranchCandidate, NSafety: d.nSafety, RL: d.cfg.RL})
		if err != nil {
			return 0, nil, err
		}
		for i := range grad {
			grad[i] += g[i]
		}
	}
	return sum, grad, nil
}

func finiteDifferencePrimaryGrad(theta []float64, f func([]float64) float64) []float64 {
	const h = 1e-5
	grad := make([]float64, len(theta))
	perturbed := append([]float64(nil), theta...)
	for i := range theta {
		orig := perturbed[i]
		perturbed[i] = orig + h
		plus := f(perturbed)
		perturbed[i] = orig - h
		minus := f(perturbed)
		perturbed[i] = orig
		grad[i] = (plus - minus) / (2 * h)
	}
	return grad
}

// safetyTest re-propagates every tree against the safety split with a
// full data reset, in safety_test branch, and reports whether every root
// upper bound is <= 0.
func (d *Driver) safetyTest(theta []float64) (bool, error) {
	for _, t := range d.Trees {
		t.Reset(true)
		cfg := tree.PropagateConfig{BoundMethod: d.cfg.BoundMethod, Branch: catalog.BranchSafety, NSafety: d.nSafety, RL: d.cfg.RL}
		if err := t.Propagate(theta, d.safety, d.Model, cfg); err != nil {
			return false, err
		}
		if t.Root.Upper > 0 {
			return false, nil
		}
	}
	return true, nil
}
