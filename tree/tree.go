// Package tree owns the parse tree built from a constraint expression:
// the Node tagged variant of §3 ("Internal"/"Constant"/"Base"), the
// δ-budget allocator, the bounds-needed monotonicity pass, and the
// post-order interval propagator that stats/interval feed.
//
// Errors:
//
//	ErrUnsupportedDeltaMethod - AssignDeltas given anything but "equal".
//	ErrDomain                 - propagation hit interval.ErrDomain (pow).
package tree

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/dataset"
	"github.com/katalvlaran/seldonian-core/interval"
	"github.com/katalvlaran/seldonian-core/model"
	"github.com/katalvlaran/seldonian-core/parser"
	"github.com/katalvlaran/seldonian-core/stats"
)

var (
	ErrUnsupportedDeltaMethod = errors.New("tree: unsupported delta assignment method")
	ErrDomain                 = errors.New("tree: domain error during propagation")
)

// leafSlot is the per-canonical-name cache entry shared by every Node
// occurrence of that leaf: a bound is computed once per propagation no
// matter how many duplicate nodes reference it (spec §3 invariant).
type leafSlot struct {
	computed bool
	lower    float64
	upper    float64
	data     *model.Data
	datasize int
}

// ParseTree owns a single constraint's root Node plus the bookkeeping
// spec §3 assigns it: the confidence budget Delta, node counts, and the
// keyed leaf cache.
type ParseTree struct {
	Root       *Node
	Delta      float64
	NNodes     int
	NBaseNodes int

	baseNodes []*Node
	cache     map[string]*leafSlot
}

// Build compiles expr into a ParseTree: parses it, converts the syntax
// tree into Nodes with dense post-order indices, and seeds a fresh cache
// slot on first sighting of each unique leaf name. It does not assign
// deltas or bounds-needed flags; call AssignDeltas then
// AssignBoundsNeeded per the build state machine.
func Build(expr string, delta float64, columns []string) (*ParseTree, error) {
	ast, err := parser.Parse(expr, columns)
	if err != nil {
		return nil, err
	}
	t := &ParseTree{Delta: delta, cache: make(map[string]*leafSlot)}
	t.Root = t.convert(ast)
	return t, nil
}

// BuildSingleLeaf wraps a bare measure name in a one-node parse tree,
// ported from the original implementation's CustomBaseNode /
// create_from_ghat_str: a "constraint" that is just a statistic, with no
// surrounding arithmetic.
func BuildSingleLeaf(name string, delta float64) (*ParseTree, error) {
	if !catalog.IsMeasure(name) {
		return nil, fmt.Errorf("tree: %q is not a known measure", name)
	}
	t := &ParseTree{Delta: delta, cache: make(map[string]*leafSlot)}
	t.Root = t.newBaseNode(name, nil)
	return t, nil
}

// convert walks an Expr bottom-up (post-order: children are converted,
// and thus indexed, before their parent), materializing Nodes and
// registering base-leaf cache slots on first sighting.
func (t *ParseTree) convert(e parser.Expr) *Node {
	switch v := e.(type) {
	case *parser.Constant:
		n := &Node{Kind: KindConstant, Value: v.Value}
		t.assignIndex(n)
		return n

	case *parser.Measure:
		n := t.newBaseNode(v.Name, v.Columns)
		t.assignIndex(n)
		return n

	case *parser.UnaryOp:
		arg := t.convert(v.Arg)
		n := &Node{Kind: KindInternal, Op: v.Op, Left: arg}
		t.assignIndex(n)
		return n

	case *parser.BinOp:
		left := t.convert(v.Left)
		right := t.convert(v.Right)
		n := &Node{Kind: KindInternal, Op: v.Op, Left: left, Right: right}
		t.assignIndex(n)
		return n

	default:
		panic(fmt.Sprintf("tree: unhandled parser.Expr %T", e))
	}
}

func (t *ParseTree) newBaseNode(name string, columns []string) *Node {
	n := &Node{Kind: KindBase, Name: name, Columns: columns}
	key := canonicalName(name, columns)
	if _, ok := t.cache[key]; !ok {
		t.cache[key] = &leafSlot{}
		t.NBaseNodes++
	}
	t.baseNodes = append(t.baseNodes, n)
	return n
}

func (t *ParseTree) assignIndex(n *Node) {
	n.Index = t.NNodes
	t.NNodes++
}

// AssignDeltas distributes the tree's confidence budget across base
// leaves. "equal" is the only supported method: every base leaf node
// (duplicates included) receives Delta/NBaseNodes, where NBaseNodes counts
// unique leaves, so the sum over unique leaves equals Delta exactly. A
// duplicate leaf carries the same share as the leaf it duplicates.
func (t *ParseTree) AssignDeltas(method string) error {
	if method != "equal" {
		return fmt.Errorf("%w: %q", ErrUnsupportedDeltaMethod, method)
	}
	if t.NBaseNodes == 0 {
		return nil
	}
	share := t.Delta / float64(t.NBaseNodes)
	for _, n := range t.baseNodes {
		n.DeltaLeaf = share
	}
	return nil
}

// BaseNodeDeltas returns the DeltaLeaf of every base-leaf node in build
// order, duplicates included. When the tree has no duplicate leaves the
// values sum to Delta after AssignDeltas; each duplicate adds one more
// share on top of that.
func (t *ParseTree) BaseNodeDeltas() []float64 {
	out := make([]float64, len(t.baseNodes))
	for i, n := range t.baseNodes {
		out[i] = n.DeltaLeaf
	}
	return out
}

// AssignBoundsNeeded is the second pass of §4.2: starting from the root
// (which needs only its upper bound — the constraint holds iff
// root.Upper <= 0), it descends setting each child's WillLowerBound /
// WillUpperBound per the operator's monotonicity. add/min/max are
// monotonic increasing in both operands so a side passes through
// unchanged; sub flips the side on its right operand; exp is monotonic
// increasing in its one operand; mult/div/pow/abs are not sign-invariant
// so both sides of every operand are conservatively requested.
func (t *ParseTree) AssignBoundsNeeded() {
	t.Root.WillUpperBound = true
	t.Root.WillLowerBound = false
	assignBoundsNeeded(t.Root)
}

func assignBoundsNeeded(n *Node) {
	if n.Kind != KindInternal {
		return
	}
	switch n.Op {
	case catalog.OpAdd, catalog.OpMin, catalog.OpMax:
		if n.WillUpperBound {
			n.Left.WillUpperBound = true
			n.Right.WillUpperBound = true
		}
		if n.WillLowerBound {
			n.Left.WillLowerBound = true
			n.Right.WillLowerBound = true
		}
	case catalog.OpSub:
		if n.WillUpperBound {
			n.Left.WillUpperBound = true
			n.Right.WillLowerBound = true
		}
		if n.WillLowerBound {
			n.Left.WillLowerBound = true
			n.Right.WillUpperBound = true
		}
	case catalog.OpExp:
		if n.WillUpperBound {
			n.Left.WillUpperBound = true
		}
		if n.WillLowerBound {
			n.Left.WillLowerBound = true
		}
	case catalog.OpMul, catalog.OpDiv, catalog.OpPow:
		if n.WillUpperBound || n.WillLowerBound {
			n.Left.WillLowerBound = true
			n.Left.WillUpperBound = true
			n.Right.WillLowerBound = true
			n.Right.WillUpperBound = true
		}
	case catalog.OpAbs:
		if n.WillUpperBound || n.WillLowerBound {
			n.Left.WillLowerBound = true
			n.Left.WillUpperBound = true
		}
	}
	assignBoundsNeeded(n.Left)
	if n.Right != nil {
		assignBoundsNeeded(n.Right)
	}
}

// PropagateConfig bundles propagate's remaining parameters (spec §4.2:
// "propagate(θ, dataset, model, bound_method, branch, n_safety, …)").
type PropagateConfig struct {
	BoundMethod catalog.BoundMethod
	Branch      catalog.Branch
	NSafety     int
	RL          stats.RLParams
	Rng         *rand.Rand
}

// Propagate runs the post-order walk of §4.2: constants resolve to
// [value, value], base leaves reuse or compute their cached bound, and
// internal nodes combine their children's intervals via interval's
// operator-wise arithmetic. It sets every node's Lower/Upper, including
// Root's.
func (t *ParseTree) Propagate(theta []float64, ds *dataset.Dataset, m *model.Model, cfg PropagateConfig) error {
	if cfg.Rng == nil {
		cfg.Rng = rand.New(rand.NewSource(1))
	}
	return t.propagate(t.Root, theta, ds, m, cfg)
}

func (t *ParseTree) propagate(n *Node, theta []float64, ds *dataset.Dataset, m *model.Model, cfg PropagateConfig) error {
	switch n.Kind {
	case KindConstant:
		n.Lower, n.Upper = n.Value, n.Value
		return nil

	case KindBase:
		return t.propagateBase(n, theta, ds, m, cfg)

	case KindInternal:
		if err := t.propagate(n.Left, theta, ds, m, cfg); err != nil {
			return err
		}
		if n.Right != nil {
			if err := t.propagate(n.Right, theta, ds, m, cfg); err != nil {
				return err
			}
		}
		return t.combine(n)

	default:
		return fmt.Errorf("tree: unhandled node kind %d", n.Kind)
	}
}

func (t *ParseTree) propagateBase(n *Node, theta []float64, ds *dataset.Dataset, m *model.Model, cfg PropagateConfig) error {
	key := canonicalName(n.Name, n.Columns)
	slot := t.cache[key]

	if !slot.computed {
		if slot.data == nil {
			data, datasize, err := stats.PrepareLeafData(n.Name, ds, n.Columns, ds.Meta.Regime, cfg.Branch, cfg.NSafety, cfg.RL)
			if err != nil {
				return err
			}
			slot.data, slot.datasize = data, datasize
		}
		z, err := stats.ComputeZHat(n.Name, theta, slot.data, m, cfg.Rng)
		if err != nil {
			return err
		}
		lower, upper, err := stats.Bound(cfg.BoundMethod, cfg.Branch, z, slot.datasize, n.DeltaLeaf, n.WillLowerBound, n.WillUpperBound, n.Lower, n.Upper, cfg.Rng)
		if err != nil {
			return err
		}
		slot.computed = true
		slot.lower, slot.upper = lower, upper
	}

	n.Lower, n.Upper = slot.lower, slot.upper
	return nil
}

func (t *ParseTree) combine(n *Node) error {
	left := interval.Interval{Lower: n.Left.Lower, Upper: n.Left.Upper}
	var right interval.Interval
	if n.Right != nil {
		right = interval.Interval{Lower: n.Right.Lower, Upper: n.Right.Upper}
	}

	var iv interval.Interval
	switch n.Op {
	case catalog.OpAdd:
		iv = interval.Add(left, right)
	case catalog.OpSub:
		iv = interval.Sub(left, right)
	case catalog.OpMul:
		iv = interval.Mult(left, right)
	case catalog.OpDiv:
		iv = interval.Div(left, right)
	case catalog.OpPow:
		var err error
		iv, err = interval.Pow(left, right)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDomain, err)
		}
	case catalog.OpMin:
		iv = interval.Min(left, right)
	case catalog.OpMax:
		iv = interval.Max(left, right)
	case catalog.OpAbs:
		iv = interval.Abs(left)
	case catalog.OpExp:
		iv = interval.Exp(left)
	default:
		return fmt.Errorf("tree: unhandled operator %q", n.Op)
	}

	if !isValidInterval(iv.Lower, iv.Upper) {
		return fmt.Errorf("tree: combining %q produced an invalid interval [%g, %g]", n.Op, iv.Lower, iv.Upper)
	}
	n.Lower, n.Upper = iv.Lower, iv.Upper
	return nil
}

// Reset clears every leaf cache slot's computed bound; when resetData is
// true it also drops the cached leaf data/datasize, restoring the slot to
// its pre-first-use state (spec §3 invariant 2) so the next propagation
// rebuilds features/labels from scratch.
func (t *ParseTree) Reset(resetData bool) {
	for _, slot := range t.cache {
		slot.computed = false
		slot.lower, slot.upper = 0, 0
		if resetData {
			slot.data = nil
			slot.datasize = 0
		}
	}
}
