package tree

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/katalvlaran/seldonian-core/catalog"
)

// Kind tags which of the three node variants a Node is. Per the design
// note against class-hierarchy polymorphism, Node is one struct with a
// Kind discriminator rather than an interface with three implementations.
type Kind int

const (
	KindInternal Kind = iota
	KindConstant
	KindBase
)

// Node is a parse-tree node. Which fields are meaningful depends on Kind:
//
//	KindInternal: Op, Left, Right (Right is nil for the unary abs/exp ops).
//	KindConstant: Value.
//	KindBase:     Name, Columns, DeltaLeaf, WillLowerBound, WillUpperBound.
//
// Lower/Upper hold the most recently propagated interval for every kind;
// for a KindBase node under bound_method "manual" they are read as the
// literal bound before propagation overwrites them with the same values.
type Node struct {
	Kind  Kind
	Index int

	Op          catalog.Op
	Left, Right *Node

	Value float64

	Name           string
	Columns        []string
	DeltaLeaf      float64
	WillLowerBound bool
	WillUpperBound bool

	Lower float64
	Upper float64
}

// canonicalName returns the cache key a base leaf is dedup'd by: the bare
// measure name when unconditioned, or "(Name | [Col1, Col2])" matching
// spec's conditional-leaf notation exactly.
func canonicalName(name string, columns []string) string {
	if len(columns) == 0 {
		return name
	}
	return fmt.Sprintf("(%s | [%s])", name, strings.Join(columns, ", "))
}

// String pretty-prints the subtree rooted at n back into the constraint
// DSL's surface syntax (fully parenthesized for infix operators), used by
// the build/print round-trip property.
func (n *Node) String() string {
	switch n.Kind {
	case KindConstant:
		return strconv.FormatFloat(n.Value, 'g', -1, 64)
	case KindBase:
		return canonicalName(n.Name, n.Columns)
	case KindInternal:
		return n.internalString()
	default:
		return "?"
	}
}

func (n *Node) internalString() string {
	switch n.Op {
	case catalog.OpAdd:
		return fmt.Sprintf("(%s + %s)", n.Left, n.Right)
	case catalog.OpSub:
		return fmt.Sprintf("(%s - %s)", n.Left, n.Right)
	case catalog.OpMul:
		return fmt.Sprintf("(%s * %s)", n.Left, n.Right)
	case catalog.OpDiv:
		return fmt.Sprintf("(%s / %s)", n.Left, n.Right)
	case catalog.OpPow:
		return fmt.Sprintf("(%s ** %s)", n.Left, n.Right)
	case catalog.OpMin:
		return fmt.Sprintf("min(%s, %s)", n.Left, n.Right)
	case catalog.OpMax:
		return fmt.Sprintf("max(%s, %s)", n.Left, n.Right)
	case catalog.OpAbs:
		return fmt.Sprintf("abs(%s)", n.Left)
	case catalog.OpExp:
		return fmt.Sprintf("exp(%s)", n.Left)
	default:
		return "?"
	}
}

// DescribeBound renders "ε [lower, upper]" / "δ=..." for a node, matching
// the original implementation's __repr__ (spec §10 supplement); useful in
// verbose driver logging.
func (n *Node) DescribeBound() string {
	if n.Kind == KindBase {
		return fmt.Sprintf("%s δ=%.6g ε[%.6g, %.6g]", n.String(), n.DeltaLeaf, n.Lower, n.Upper)
	}
	return fmt.Sprintf("%s ε[%.6g, %.6g]", n.String(), n.Lower, n.Upper)
}

func isValidInterval(lower, upper float64) bool {
	if math.IsInf(lower, -1) && math.IsInf(upper, 1) {
		return true
	}
	return lower <= upper
}
