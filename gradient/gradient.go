// Package gradient implements the small reverse-mode derivative engine
// the selection driver's gradient-descent-with-duals technique needs:
// ∂upperBound(θ)/∂θ for a propagated parse tree. It is scoped to exactly
// the nine operators tree/interval support and to the closed-form
// derivative of a base leaf's mean(zhat) term, per SPEC_FULL §6 — this is
// the one package in this module built on hand-rolled numerics rather
// than a library, because the retrieved pack has no general-purpose Go
// autodiff dependency to reach for instead (see DESIGN.md).
//
// Simplification: the half-width term of a t-test bound also depends on
// θ through stddev(z(θ)), but that second-order dependence is not
// differentiated here — only ∂mean(z)/∂θ is propagated, treating the
// half-width as locally constant. This matches the closed-form option
// spec.md §9 describes ("mean of zhat and its gradient") and keeps the
// engine a true reverse-mode pass over a nine-operator graph rather than
// a full statistical Jacobian.
package gradient

import (
	"fmt"
	"math"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/dataset"
	"github.com/katalvlaran/seldonian-core/model"
	"github.com/katalvlaran/seldonian-core/stats"
	"github.com/katalvlaran/seldonian-core/tree"
)

// LeafGradStep is the central-finite-difference step used when a model
// offers no closed-form statistic gradient.
const LeafGradStep = 1e-5

// Config mirrors tree.PropagateConfig without its Rng. Which root bound
// is differentiated is not configured here: Of takes the upper bound when
// t.Root.WillUpperBound is set (the usual case, since the root only needs
// its upper bound) and the lower bound otherwise.
type Config struct {
	BoundMethod catalog.BoundMethod
	Branch      catalog.Branch
	NSafety     int
	RL          stats.RLParams
}

// Of returns ∂B/∂θ where B is the propagated root bound (Upper if
// t.Root.WillUpperBound, else Lower) of t at theta, evaluated over ds and
// m. It assumes t has already been propagated at theta via
// tree.Propagate with a matching Config, so every node's Lower/Upper is
// current; Of re-derives only the derivative pass, not the values.
func Of(t *tree.ParseTree, theta []float64, ds *dataset.Dataset, m *model.Model, cfg Config) ([]float64, error) {
	d := &differ{theta: theta, ds: ds, model: m, cfg: cfg, leafGrads: make(map[*tree.Node][]float64)}
	useUpper := t.Root.WillUpperBound
	grad, err := d.backward(t.Root, useUpper)
	if err != nil {
		return nil, err
	}
	return grad, nil
}

type differ struct {
	theta     []float64
	ds        *dataset.Dataset
	model     *model.Model
	cfg       Config
	leafGrads map[*tree.Node][]float64
}

// backward returns ∂(node's upper-bound-if-useUpper-else-lower value)/∂θ.
func (d *differ) backward(n *tree.Node, upper bool) ([]float64, error) {
	switch n.Kind {
	case tree.KindConstant:
		return zeros(len(d.theta)), nil

	case tree.KindBase:
		return d.leafGradient(n)

	case tree.KindInternal:
		return d.internalGradient(n, upper)

	default:
		return nil, fmt.Errorf("gradient: unhandled node kind %d", n.Kind)
	}
}

// leafGradient returns ∂mean(zhat)/∂θ for a base leaf, via a model-
// supplied gradient of its loss name (when one happens to be registered
// under the measure name) or central finite differences over
// model.Evaluate otherwise.
func (d *differ) leafGradient(n *tree.Node) ([]float64, error) {
	if g, ok := d.leafGrads[n]; ok {
		return g, nil
	}

	data, _, err := stats.PrepareLeafData(n.Name, d.ds, n.Columns, d.ds.Meta.Regime, d.cfg.Branch, d.cfg.NSafety, d.cfg.RL)
	if err != nil {
		return nil, err
	}

	if gf, err := d.model.Gradient(n.Name); err == nil {
		out := gf(d.theta, data.Features, data.Labels)
		d.leafGrads[n] = out
		return out, nil
	}

	grad, err := finiteDifferenceGradient(d.theta, func(theta []float64) (float64, error) {
		return d.model.Evaluate(n.Name, theta, data)
	})
	if err != nil {
		return nil, err
	}
	d.leafGrads[n] = grad
	return grad, nil
}

func finiteDifferenceGradient(theta []float64, f func([]float64) (float64, error)) ([]float64, error) {
	grad := make([]float64, len(theta))
	perturbed := append([]float64(nil), theta...)
	for i := range theta {
		orig := perturbed[i]
		perturbed[i] = orig + LeafGradStep
		plus, err := f(perturbed)
		if err != nil {
			return nil, err
		}
		perturbed[i] = orig - LeafGradStep
		minus, err := f(perturbed)
		if err != nil {
			return nil, err
		}
		perturbed[i] = orig
		grad[i] = (plus - minus) / (2 * LeafGradStep)
	}
	return grad, nil
}

// internalGradient differentiates one of the nine supported operators at
// the node's already-propagated point values, combining the children's
// values and gradients via the ordinary product/quotient/chain rules.
// min/max/abs take a subgradient at their kink (the currently larger
// operand, or zero), noted per spec.md §9.
func (d *differ) internalGradient(n *tree.Node, upper bool) ([]float64, error) {
	lv, uv := n.Left.Lower, n.Left.Upper
	lVal := valueFor(lv, uv, upper)
	lGrad, err := d.backward(n.Left, upper)
	if err != nil {
		return nil, err
	}

	if n.Right == nil {
		return d.unaryGradient(n, lVal, lGrad)
	}

	rv, ruv := n.Right.Lower, n.Right.Upper
	// sub flips the side requirement on its right child (tree.assignBoundsNeeded);
	// every other binary op keeps the same side.
	rUpper := upper
	if n.Op == catalog.OpSub {
		rUpper = !upper
	}
	rVal := valueFor(rv, ruv, rUpper)
	rGrad, err := d.backward(n.Right, rUpper)
	if err != nil {
		return nil, err
	}

	return d.binaryGradient(n, lVal, rVal, lGrad, rGrad)
}

func (d *differ) unaryGradient(n *tree.Node, v float64, g []float64) ([]float64, error) {
	switch n.Op {
	case catalog.OpAbs:
		s := sign(v)
		return scale(g, s), nil
	case catalog.OpExp:
		return scale(g, math.Exp(v)), nil
	default:
		return nil, fmt.Errorf("gradient: unhandled unary operator %q", n.Op)
	}
}

func (d *differ) binaryGradient(n *tree.Node, l, r float64, lg, rg []float64) ([]float64, error) {
	switch n.Op {
	case catalog.OpAdd:
		return add(lg, rg), nil
	case catalog.OpSub:
		return sub(lg, rg), nil
	case catalog.OpMul:
		return add(scale(lg, r), scale(rg, l)), nil
	case catalog.OpDiv:
		if r == 0 {
			return zeros(len(lg)), nil
		}
		num := sub(scale(lg, r), scale(rg, l))
		return scale(num, 1/(r*r)), nil
	case catalog.OpPow:
		if l <= 0 {
			return zeros(len(lg)), nil
		}
		term1 := scale(lg, r*math.Pow(l, r-1))
		term2 := scale(rg, math.Pow(l, r)*math.Log(l))
		return add(term1, term2), nil
	case catalog.OpMin:
		if l <= r {
			return lg, nil
		}
		return rg, nil
	case catalog.OpMax:
		if l >= r {
			return lg, nil
		}
		return rg, nil
	default:
		return nil, fmt.Errorf("gradient: unhandled binary operator %q", n.Op)
	}
}

func valueFor(lower, upper float64, wantUpper bool) float64 {
	if wantUpper {
		return upper
	}
	return lower
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func zeros(n int) []float64 { return make([]float64, n) }

func scale(v []float64, s float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

func add(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
