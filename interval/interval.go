// Package interval implements the operator-wise interval arithmetic that
// the parse tree (tree package) uses to propagate confidence bounds
// bottom-up: add, sub, mult, div, pow, min, max, abs, and exp on
// [lower, upper] pairs, with the NaN discipline of spec §4.4 (any computed
// endpoint that becomes NaN is rewritten to -Inf in the lower slot and
// +Inf in the upper slot, so the result stays a valid, conservative bound
// even across singularities).
package interval

import (
	"errors"
	"math"
)

// ErrDomain is returned by Pow when the base interval is not entirely
// non-negative, or when zero is in the base but the exponent interval
// reaches a value below 1 (spec §4.4's pow domain restriction).
var ErrDomain = errors.New("interval: domain error")

// Interval is a closed real interval [Lower, Upper], or exactly
// (-Inf, +Inf) when unbounded. Lower must be <= Upper in every other case.
type Interval struct {
	Lower float64
	Upper float64
}

// Point returns the degenerate interval [v, v].
func Point(v float64) Interval { return Interval{Lower: v, Upper: v} }

// Unbounded returns (-Inf, +Inf).
func Unbounded() Interval { return Interval{Lower: math.Inf(-1), Upper: math.Inf(1)} }

func protectLower(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}

func protectUpper(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// Add returns a+b.
func Add(a, b Interval) Interval {
	return Interval{
		Lower: protectLower(a.Lower + b.Lower),
		Upper: protectUpper(a.Upper + b.Upper),
	}
}

// Sub returns a-b.
func Sub(a, b Interval) Interval {
	return Interval{
		Lower: protectLower(a.Lower - b.Upper),
		Upper: protectUpper(a.Upper - b.Lower),
	}
}

// Mult returns a*b, taking the min/max of the four corner products.
func Mult(a, b Interval) Interval {
	p1 := a.Lower * b.Lower
	p2 := a.Lower * b.Upper
	p3 := a.Upper * b.Lower
	p4 := a.Upper * b.Upper
	return Interval{
		Lower: protectLower(minOf4(p1, p2, p3, p4)),
		Upper: protectUpper(maxOf4(p1, p2, p3, p4)),
	}
}

// Div returns a/b, handling the three singular cases of spec §4.4:
// b straddling zero yields an unbounded result; b touching zero from
// exactly one side reduces to a multiplication by a one-sided reciprocal
// interval; otherwise b is entirely positive or entirely negative and Div
// reduces to a multiplication by [1/b.Upper, 1/b.Lower].
func Div(a, b Interval) Interval {
	switch {
	case b.Lower < 0 && 0 < b.Upper:
		return Unbounded()
	case b.Upper == 0:
		return Mult(a, Interval{Lower: math.Inf(-1), Upper: 1 / b.Lower})
	case b.Lower == 0:
		return Mult(a, Interval{Lower: 1 / b.Upper, Upper: math.Inf(1)})
	default:
		return Mult(a, Interval{Lower: 1 / b.Upper, Upper: 1 / b.Lower})
	}
}

// Pow returns pow(a,b) as the min/max of the four corner evaluations.
// a must be entirely non-negative; if a contains zero and b reaches below
// 1, ErrDomain is returned rather than silently poisoning the bound.
func Pow(a, b Interval) (Interval, error) {
	if a.Lower < 0 {
		return Interval{}, ErrDomain
	}
	if (a.Lower <= 0 && a.Upper >= 0) && b.Lower < 1 {
		return Interval{}, ErrDomain
	}
	c1 := math.Pow(a.Lower, b.Lower)
	c2 := math.Pow(a.Lower, b.Upper)
	c3 := math.Pow(a.Upper, b.Lower)
	c4 := math.Pow(a.Upper, b.Upper)
	return Interval{
		Lower: protectLower(minOf4(c1, c2, c3, c4)),
		Upper: protectUpper(maxOf4(c1, c2, c3, c4)),
	}, nil
}

// Min returns the componentwise minimum of a and b.
func Min(a, b Interval) Interval {
	return Interval{Lower: math.Min(a.Lower, b.Lower), Upper: math.Min(a.Upper, b.Upper)}
}

// Max returns the componentwise maximum of a and b.
func Max(a, b Interval) Interval {
	return Interval{Lower: math.Max(a.Lower, b.Lower), Upper: math.Max(a.Upper, b.Upper)}
}

// Abs returns the absolute value of interval a.
func Abs(a Interval) Interval {
	absLower := math.Abs(a.Lower)
	absUpper := math.Abs(a.Upper)
	var lower float64
	if sign(a.Lower) == sign(a.Upper) {
		lower = math.Min(absLower, absUpper)
	} else {
		lower = 0
	}
	return Interval{
		Lower: protectLower(lower),
		Upper: protectUpper(math.Max(absLower, absUpper)),
	}
}

// Exp returns e raised to interval a.
func Exp(a Interval) Interval {
	return Interval{
		Lower: protectLower(math.Exp(a.Lower)),
		Upper: protectUpper(math.Exp(a.Upper)),
	}
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

func minOf4(a, b, c, d float64) float64 {
	return math.Min(math.Min(a, b), math.Min(c, d))
}

func maxOf4(a, b, c, d float64) float64 {
	return math.Max(math.Max(a, b), math.Max(c, d))
}
