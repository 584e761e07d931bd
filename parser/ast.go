package parser

import "github.com/katalvlaran/seldonian-core/catalog"

// Expr is a node of the syntax tree produced by Parse. It is a pure
// syntactic representation: tree.Build converts it into tree.Node,
// assigning post-order indices and leaf-cache slots along the way.
type Expr interface {
	exprNode()
}

// BinOp is a binary operator application: add/sub/mult/div/pow (infix)
// or min/max (call syntax).
type BinOp struct {
	Op          catalog.Op
	Left, Right Expr
}

// UnaryOp is a unary call: abs(x) or exp(x).
type UnaryOp struct {
	Op  catalog.Op
	Arg Expr
}

// Measure is a base-variable leaf: a catalog measure name, optionally
// restricted by conditional columns via the "(Measure | [Col,...])" form.
type Measure struct {
	Name       string
	Columns    []string // empty when unconditioned
}

// Constant is a numeric literal or the named constant "e".
type Constant struct {
	Value float64
}

func (*BinOp) exprNode()    {}
func (*UnaryOp) exprNode()  {}
func (*Measure) exprNode()  {}
func (*Constant) exprNode() {}
