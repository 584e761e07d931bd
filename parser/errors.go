package parser

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the constraint DSL (spec §4.1). Each is wrapped
// with the offending token or name via fmt.Errorf's %w before it reaches
// the caller, so callers can still branch with errors.Is against the bare
// sentinel.
var (
	// ErrUnsupportedOperator is returned for an operator outside the
	// accepted set (+ - * / ** and the abs/exp/min/max calls).
	ErrUnsupportedOperator = errors.New("parser: unsupported operator")

	// ErrUnknownMeasure is returned for an identifier that is neither a
	// catalog measure name nor the constant "e".
	ErrUnknownMeasure = errors.New("parser: unknown measure identifier")

	// ErrBadConditional is returned when the right-hand side of "|" is not
	// a bracketed list of known column identifiers.
	ErrBadConditional = errors.New("parser: malformed conditional restriction")

	// ErrBadArity is returned when abs/exp receive != 1 argument or
	// min/max receive != 2 arguments.
	ErrBadArity = errors.New("parser: wrong number of arguments")

	// ErrMalformedInput is returned when the expression does not parse as
	// exactly one top-level arithmetic term.
	ErrMalformedInput = errors.New("parser: malformed expression")
)

func errUnsupportedOperator(tok string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedOperator, tok)
}

func errUnknownMeasure(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownMeasure, name)
}

func errBadConditional(reason string) error {
	return fmt.Errorf("%w: %s", ErrBadConditional, reason)
}

func errBadArity(fn string, got, want int) error {
	return fmt.Errorf("%w: %s() got %d argument(s), want %d", ErrBadArity, fn, got, want)
}
