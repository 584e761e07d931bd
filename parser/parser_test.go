package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/parser"
)

func TestParseConditionalMeasure(t *testing.T) {
	expr, err := parser.Parse("abs((PR | [M]) - (PR | [F])) - 0.15", []string{"M", "F"})
	require.NoError(t, err)

	top, ok := expr.(*parser.BinOp)
	require.True(t, ok)
	require.Equal(t, catalog.OpSub, top.Op)

	abs, ok := top.Left.(*parser.UnaryOp)
	require.True(t, ok)
	require.Equal(t, catalog.OpAbs, abs.Op)

	inner, ok := abs.Arg.(*parser.BinOp)
	require.True(t, ok)
	require.Equal(t, catalog.OpSub, inner.Op)

	leftMeasure, ok := inner.Left.(*parser.Measure)
	require.True(t, ok)
	require.Equal(t, "PR", leftMeasure.Name)
	require.Equal(t, []string{"M"}, leftMeasure.Columns)
}

func TestParseEqualizedOdds(t *testing.T) {
	expr, err := parser.Parse(
		"abs((FNR | [M]) - (FNR | [F])) + abs((FPR | [M]) - (FPR | [F])) - 0.35",
		[]string{"M", "F"})
	require.NoError(t, err)
	top, ok := expr.(*parser.BinOp)
	require.True(t, ok)
	require.Equal(t, catalog.OpSub, top.Op)
}

func TestParseDisparateImpact(t *testing.T) {
	expr, err := parser.Parse(
		"0.8 - min((PR | [M])/(PR | [F]), (PR | [F])/(PR | [M]))",
		[]string{"M", "F"})
	require.NoError(t, err)
	top, ok := expr.(*parser.BinOp)
	require.True(t, ok)
	require.Equal(t, catalog.OpSub, top.Op)
	_, ok = top.Right.(*parser.BinOp)
	require.True(t, ok) // min(...) parses as a BinOp{Op: OpMin}
}

func TestParseRLConstraint(t *testing.T) {
	expr, err := parser.Parse("-0.25 - J_pi_new", nil)
	require.NoError(t, err)
	top, ok := expr.(*parser.BinOp)
	require.True(t, ok)
	require.Equal(t, catalog.OpSub, top.Op)
	leftConst, ok := top.Left.(*parser.Constant)
	require.True(t, ok)
	require.Equal(t, -0.25, leftConst.Value)
	rightMeasure, ok := top.Right.(*parser.Measure)
	require.True(t, ok)
	require.Equal(t, "J_pi_new", rightMeasure.Name)
}

func TestParseEulerConstant(t *testing.T) {
	expr, err := parser.Parse("exp(e)", nil)
	require.NoError(t, err)
	u, ok := expr.(*parser.UnaryOp)
	require.True(t, ok)
	c, ok := u.Arg.(*parser.Constant)
	require.True(t, ok)
	require.InDelta(t, 2.718281828, c.Value, 1e-6)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		expr string
		cols []string
		want error
	}{
		{"unknown measure", "UNKNOWN_STAT - 0.1", nil, parser.ErrUnknownMeasure},
		{"bad conditional no bracket", "(PR | M)", []string{"M"}, parser.ErrBadConditional},
		{"bad conditional unknown column", "(PR | [Z])", []string{"M"}, parser.ErrBadConditional},
		{"abs bad arity", "abs(PR, FPR)", nil, parser.ErrBadArity},
		{"min bad arity", "min(PR)", nil, parser.ErrBadArity},
		{"malformed trailing tokens", "PR FPR", nil, parser.ErrMalformedInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.Parse(tc.expr, tc.cols)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseDuplicateLeaf(t *testing.T) {
	expr, err := parser.Parse("(PR | [M]) - (PR | [M])", []string{"M"})
	require.NoError(t, err)
	top := expr.(*parser.BinOp)
	require.Equal(t, catalog.OpSub, top.Op)
	left := top.Left.(*parser.Measure)
	right := top.Right.(*parser.Measure)
	require.Equal(t, left.Name, right.Name)
	require.Equal(t, left.Columns, right.Columns)
}
