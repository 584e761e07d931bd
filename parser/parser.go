// Package parser compiles the constraint DSL of spec §4.1 — a small
// arithmetic language of measure identifiers, conditional restrictions,
// the constant e, numeric literals, the infix operators + - * / **, and
// the calls abs/exp/min/max — into a syntax tree (Expr). tree.Build
// consumes that tree to produce the Node structure the propagator walks.
package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/katalvlaran/seldonian-core/catalog"
)

// Parse compiles expr into a single Expr tree. columns is the set of
// sensitive-column names valid inside a conditional restriction
// "(Measure | [Col, ...])"; an unrecognized column name there is reported
// as ErrBadConditional.
func Parse(expr string, columns []string) (Expr, error) {
	toks := tokenize(expr)
	for _, tok := range toks {
		if tok.kind == tokIllegal {
			return nil, errUnsupportedOperator(tok.text)
		}
	}
	colSet := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		colSet[c] = struct{}{}
	}
	p := &parser{toks: toks, columns: colSet}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, ErrMalformedInput
	}
	return e, nil
}

func tokenize(s string) []token {
	lx := newLexer(s)
	var toks []token
	for {
		tok := lx.next()
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			break
		}
	}
	return toks
}

type parser struct {
	toks    []token
	pos     int
	columns map[string]struct{}
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// parseExpr := term (('+' | '-') term)*
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().kind {
		case tokPlus:
			p.advance()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = &BinOp{Op: catalog.OpAdd, Left: left, Right: right}
		case tokMinus:
			p.advance()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = &BinOp{Op: catalog.OpSub, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

// parseTerm := power (('*' | '/') power)*
func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().kind {
		case tokStar:
			p.advance()
			right, err := p.parsePower()
			if err != nil {
				return nil, err
			}
			left = &BinOp{Op: catalog.OpMul, Left: left, Right: right}
		case tokSlash:
			p.advance()
			right, err := p.parsePower()
			if err != nil {
				return nil, err
			}
			left = &BinOp{Op: catalog.OpDiv, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

// parsePower := unary ('**' power)?   (right-associative)
func (p *parser) parsePower() (Expr, error) {
	base, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokStarStar {
		p.advance()
		exp, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &BinOp{Op: catalog.OpPow, Left: base, Right: exp}, nil
	}
	return base, nil
}

// parseUnary := ('-' | '+') unary | primary
func (p *parser) parseUnary() (Expr, error) {
	switch p.cur().kind {
	case tokMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if c, ok := operand.(*Constant); ok {
			return &Constant{Value: -c.Value}, nil
		}
		return &BinOp{Op: catalog.OpSub, Left: &Constant{Value: 0}, Right: operand}, nil
	case tokPlus:
		p.advance()
		return p.parseUnary()
	default:
		return p.parsePrimary()
	}
}

// parsePrimary := NUMBER | IDENT | call | conditional | '(' expr ')'
func (p *parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch tok.kind {
	case tokNumber:
		p.advance()
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, ErrMalformedInput
		}
		return &Constant{Value: v}, nil

	case tokIdent:
		return p.parseIdentOrCall(tok.text)

	case tokLParen:
		return p.parseParenGroup()

	case tokMinus, tokPlus:
		return p.parseUnary()

	default:
		return nil, ErrMalformedInput
	}
}

func (p *parser) parseIdentOrCall(name string) (Expr, error) {
	p.advance()

	if name == "e" {
		return &Constant{Value: math.E}, nil
	}

	if op, ok := catalog.CallFuncs[name]; ok && p.cur().kind == tokLParen {
		return p.parseCall(name, op)
	}

	if !catalog.IsMeasure(name) {
		return nil, errUnknownMeasure(name)
	}
	return &Measure{Name: name}, nil
}

func (p *parser) parseCall(name string, op catalog.Op) (Expr, error) {
	p.advance() // consume '('
	var args []Expr
	if p.cur().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.cur().kind != tokRParen {
		return nil, ErrMalformedInput
	}
	p.advance() // consume ')'

	if _, unary := catalog.UnaryOps[op]; unary {
		if len(args) != 1 {
			return nil, errBadArity(name, len(args), 1)
		}
		return &UnaryOp{Op: op, Arg: args[0]}, nil
	}
	if len(args) != 2 {
		return nil, errBadArity(name, len(args), 2)
	}
	return &BinOp{Op: op, Left: args[0], Right: args[1]}, nil
}

// parseParenGroup handles both a parenthesized sub-expression and the
// conditional restriction "(Measure | [Col, ...])", disambiguating by
// looking ahead for "IDENT |" immediately inside the opening paren.
func (p *parser) parseParenGroup() (Expr, error) {
	p.advance() // consume '('

	if p.cur().kind == tokIdent && p.toks[p.nextPos()].kind == tokPipe {
		name := p.cur().text
		p.advance() // ident
		p.advance() // '|'
		return p.parseConditional(name)
	}

	inner, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokRParen {
		return nil, ErrMalformedInput
	}
	p.advance()
	return inner, nil
}

func (p *parser) nextPos() int {
	if p.pos+1 < len(p.toks) {
		return p.pos + 1
	}
	return len(p.toks) - 1
}

func (p *parser) parseConditional(measureName string) (Expr, error) {
	if !catalog.IsMeasure(measureName) {
		return nil, errUnknownMeasure(measureName)
	}
	if p.cur().kind != tokLBracket {
		return nil, errBadConditional("expected '[' after '|'")
	}
	p.advance()

	var cols []string
	if p.cur().kind != tokRBracket {
		for {
			if p.cur().kind != tokIdent {
				return nil, errBadConditional("conditional column list must contain identifiers")
			}
			col := p.cur().text
			if _, ok := p.columns[col]; !ok {
				return nil, errBadConditional("unrecognized sensitive column " + strings.TrimSpace(col))
			}
			cols = append(cols, col)
			p.advance()
			if p.cur().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.cur().kind != tokRBracket {
		return nil, errBadConditional("expected ']' to close column list")
	}
	p.advance()
	if p.cur().kind != tokRParen {
		return nil, errBadConditional("expected ')' to close conditional restriction")
	}
	p.advance()

	return &Measure{Name: measureName, Columns: cols}, nil
}
