package scoring

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Expressions in a Config are never executed as code. They are parsed into a
// closed set of shapes: linear combinations of named variables (numeric
// transforms, warning predicate operands) and combinator formulas.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokCmp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || c == '.':
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			n, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at %d", src[start:i], start)
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: n, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || isDigit(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '<' || c == '>' || c == '=' || c == '!':
			start := i
			i++
			if i < len(src) && src[i] == '=' {
				i++
			}
			op := src[start:i]
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("invalid operator %q at %d", op, start)
			}
			toks = append(toks, token{kind: tokCmp, text: op, pos: start})
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			r, _ := utf8.DecodeRuneInString(src[i:])
			return nil, fmt.Errorf("unexpected character %q at %d", r, i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// Identifiers are ASCII only: letters, digits and underscores.
func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

type parser struct {
	toks []token
	pos  int
}

func newParser(src string) (*parser, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expectEOF() error {
	if t := p.peek(); t.kind != tokEOF {
		return fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return nil
}

type linearTerm struct {
	name string
	coef float64
}

// linearExpr is constant + Σ coef·name.
type linearExpr struct {
	constant float64
	terms    []linearTerm
}

func (e linearExpr) eval(lookup func(string) float64) float64 {
	v := e.constant
	for _, t := range e.terms {
		v += t.coef * lookup(t.name)
	}
	return v
}

func (e *linearExpr) add(name string, coef float64) {
	if name == "" {
		e.constant += coef
		return
	}
	for i := range e.terms {
		if e.terms[i].name == name {
			e.terms[i].coef += coef
			return
		}
	}
	e.terms = append(e.terms, linearTerm{name: name, coef: coef})
}

// parseLinear parses term (('+'|'-') term)*.
func (p *parser) parseLinear() (linearExpr, error) {
	var e linearExpr
	coef, name, err := p.parseTerm()
	if err != nil {
		return e, err
	}
	e.add(name, coef)
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return e, nil
		}
		p.next()
		coef, name, err := p.parseTerm()
		if err != nil {
			return e, err
		}
		if t.text == "-" {
			coef = -coef
		}
		e.add(name, coef)
	}
}

// parseTerm parses factor (('*'|'/') factor)* where at most one factor is a
// variable and divisors are non-zero constants.
func (p *parser) parseTerm() (float64, string, error) {
	coef := 1.0
	name := ""
	factor := func() error {
		sign := 1.0
		for t := p.peek(); t.kind == tokOp && (t.text == "-" || t.text == "+"); t = p.peek() {
			if t.text == "-" {
				sign = -sign
			}
			p.next()
		}
		t := p.next()
		switch t.kind {
		case tokNumber:
			coef *= sign * t.num
		case tokIdent:
			if name != "" {
				return fmt.Errorf("non-linear term %s * %s at %d", name, t.text, t.pos)
			}
			name = t.text
			coef *= sign
		case tokEOF:
			return fmt.Errorf("unexpected end of expression")
		default:
			return fmt.Errorf("unexpected %q at %d", t.text, t.pos)
		}
		return nil
	}
	if err := factor(); err != nil {
		return 0, "", err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return coef, name, nil
		}
		p.next()
		if t.text == "*" {
			if err := factor(); err != nil {
				return 0, "", err
			}
			continue
		}
		d := p.next()
		if d.kind != tokNumber {
			return 0, "", fmt.Errorf("division by non-constant at %d", d.pos)
		}
		if d.num == 0 {
			return 0, "", fmt.Errorf("division by zero at %d", d.pos)
		}
		coef /= d.num
	}
}

func parseLinearExpr(src string, allowed func(string) bool) (linearExpr, error) {
	p, err := newParser(src)
	if err != nil {
		return linearExpr{}, err
	}
	e, err := p.parseLinear()
	if err != nil {
		return linearExpr{}, err
	}
	if err := p.expectEOF(); err != nil {
		return linearExpr{}, err
	}
	for _, t := range e.terms {
		if !allowed(t.name) {
			return linearExpr{}, fmt.Errorf("unknown variable %q", t.name)
		}
	}
	return e, nil
}

// predicate compares two linear expressions.
type predicate struct {
	left  linearExpr
	op    string
	right linearExpr
}

func parsePredicate(src string, allowed func(string) bool) (predicate, error) {
	p, err := newParser(src)
	if err != nil {
		return predicate{}, err
	}
	left, err := p.parseLinear()
	if err != nil {
		return predicate{}, err
	}
	cmp := p.next()
	if cmp.kind != tokCmp {
		return predicate{}, fmt.Errorf("expected comparison operator at %d", cmp.pos)
	}
	right, err := p.parseLinear()
	if err != nil {
		return predicate{}, err
	}
	if err := p.expectEOF(); err != nil {
		return predicate{}, err
	}
	for _, side := range []linearExpr{left, right} {
		for _, t := range side.terms {
			if !allowed(t.name) {
				return predicate{}, fmt.Errorf("unknown variable %q", t.name)
			}
		}
	}
	return predicate{left: left, op: cmp.text, right: right}, nil
}

func (pr predicate) holds(lookup func(string) float64) bool {
	l, r := pr.left.eval(lookup), pr.right.eval(lookup)
	switch pr.op {
	case ">":
		return l > r
	case ">=":
		return l >= r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case "==":
		return l == r
	case "!=":
		return l != r
	}
	return false
}
