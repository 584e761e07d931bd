// Package catalog holds the process-wide, read-only tables that the rest
// of this module consults: the statistic names a constraint expression may
// reference, the operator symbols the expression parser accepts, and the
// optimizer/bound-method names the selection driver recognizes.
//
// None of these tables are mutated after init; callers treat the exported
// maps as immutable lookup sets.
package catalog

// Measure is the name of a statistic a constraint expression can reference,
// e.g. "PR" in "(PR | [M])".
type Measure string

// Built-in measure functions. JPiNew is the reinforcement-learning
// importance-weighted return of a candidate policy; PairDifference is the
// regression error gap between two groups and is evaluated in-package by
// stats rather than delegated to a model (see stats.ComputeZHat).
const (
	PR             Measure = "PR"
	FPR            Measure = "FPR"
	FNR            Measure = "FNR"
	MSE            Measure = "MSE"
	MeanError      Measure = "mean_error"
	JPiNew         Measure = "J_pi_new"
	PairDifference Measure = "pair_difference"
)

// Measures is the read-only set of recognized measure-function names.
var Measures = map[Measure]struct{}{
	PR: {}, FPR: {}, FNR: {}, MSE: {}, MeanError: {}, JPiNew: {}, PairDifference: {},
}

// IsMeasure reports whether name is a known catalog measure.
func IsMeasure(name string) bool {
	_, ok := Measures[Measure(name)]
	return ok
}

// Op is an operator or function-call opcode in the constraint DSL.
type Op string

// Supported operators. Arity determines how ast/parser and tree validate
// call expressions: unary ops take exactly one argument, binary ops
// exactly two.
const (
	OpAdd Op = "add"
	OpSub Op = "sub"
	OpMul Op = "mult"
	OpDiv Op = "div"
	OpPow Op = "pow"
	OpMin Op = "min"
	OpMax Op = "max"
	OpAbs Op = "abs"
	OpExp Op = "exp"
)

// UnaryOps is the set of operators taking exactly one operand.
var UnaryOps = map[Op]struct{}{OpAbs: {}, OpExp: {}}

// BinaryOps is the set of operators taking exactly two operands.
var BinaryOps = map[Op]struct{}{
	OpAdd: {}, OpSub: {}, OpMul: {}, OpDiv: {}, OpPow: {}, OpMin: {}, OpMax: {},
}

// CallFuncs maps the identifier used in call syntax (e.g. "abs(x)") to its
// opcode; infix operators (+ - * / **) are tokenized separately and never
// appear here.
var CallFuncs = map[string]Op{
	"abs": OpAbs,
	"exp": OpExp,
	"min": OpMin,
	"max": OpMax,
}

// Optimizer is the name of a candidate-selection search technique.
type Optimizer string

const (
	OptimizerNelderMead Optimizer = "NelderMead"
	OptimizerBFGS       Optimizer = "BFGS"
	OptimizerGradient   Optimizer = "GradientDescent"
)

// SupportedOptimizers is the read-only set of recognized optimizers.
var SupportedOptimizers = map[Optimizer]struct{}{
	OptimizerNelderMead: {}, OptimizerBFGS: {}, OptimizerGradient: {},
}

// BoundMethod names a confidence-bound calculation strategy.
type BoundMethod string

const (
	BoundTTest  BoundMethod = "ttest"
	BoundManual BoundMethod = "manual"
	BoundRandom BoundMethod = "random"
)

// SupportedBoundMethods is the read-only set of recognized bound methods.
var SupportedBoundMethods = map[BoundMethod]struct{}{
	BoundTTest: {}, BoundManual: {}, BoundRandom: {},
}

// Branch names which half of the run a propagation belongs to: the
// candidate-selection search, or the post-hoc safety test.
type Branch string

const (
	BranchCandidate Branch = "candidate_selection"
	BranchSafety    Branch = "safety_test"
)
