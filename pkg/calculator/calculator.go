// Package calculator evaluates arithmetic expressions and a few insurance formulas.
package calculator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Type selects the formula Evaluate applies.
type Type string

const (
	Arithmetic       Type = "arithmetic"
	Percentage       Type = "percentage"
	CompoundInterest Type = "compound_interest"
	Premium          Type = "premium"
)

// Result is a successful evaluation.
type Result struct {
	Result  float64 `json:"result"`
	Formula string  `json:"formula"`
}

// Error is a failed evaluation. Code is stable, Message is human readable.
type Error struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Evaluate computes expression (for Arithmetic) or the named formula using vars.
func Evaluate(expression string, typ Type, vars map[string]float64) (Result, error) {
	switch typ {
	case "", Arithmetic:
		return evalArithmetic(expression, vars)
	case Percentage:
		value, rate, err := need2(vars, "value", "rate")
		if err != nil {
			return Result{}, err
		}
		return finish(value*rate/100, fmt.Sprintf("%s * %s / 100", num(value), num(rate)))
	case CompoundInterest:
		principal, rate, err := need2(vars, "principal", "rate")
		if err != nil {
			return Result{}, err
		}
		years, ok := vars["years"]
		if !ok {
			return Result{}, newError("missing_variable", "variable %q is required", "years")
		}
		periods := vars["periods"]
		if periods <= 0 {
			periods = 1
		}
		v := principal * math.Pow(1+rate/100/periods, periods*years)
		return finish(v, fmt.Sprintf("%s * (1 + %s / 100 / %s) ^ (%s * %s)", num(principal), num(rate), num(periods), num(periods), num(years)))
	case Premium:
		base, risk, err := need2(vars, "base", "risk_factor")
		if err != nil {
			return Result{}, err
		}
		discount := vars["discount"]
		return finish(base*risk*(1-discount/100), fmt.Sprintf("%s * %s * (1 - %s / 100)", num(base), num(risk), num(discount)))
	default:
		return Result{}, newError("unsupported_type", "calculation type %q is not supported", typ)
	}
}

func evalArithmetic(expression string, vars map[string]float64) (Result, error) {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return Result{}, newError("empty_expression", "expression is empty")
	}
	p := &parser{src: expr, vars: vars}
	v, err := p.parse()
	if err != nil {
		return Result{}, err
	}
	return finish(v, expr)
}

func finish(v float64, formula string) (Result, error) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return Result{}, newError("invalid_result", "result of %s is not a finite number", formula)
	}
	return Result{Result: math.Round(v*1e10) / 1e10, Formula: formula}, nil
}

func need2(vars map[string]float64, a, b string) (float64, float64, error) {
	x, ok := vars[a]
	if !ok {
		return 0, 0, newError("missing_variable", "variable %q is required", a)
	}
	y, ok := vars[b]
	if !ok {
		return 0, 0, newError("missing_variable", "variable %q is required", b)
	}
	return x, y, nil
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string { return num(v) }

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// parser is a recursive-descent evaluator:
//
//	expr   = term { ("+"|"-") term }
//	term   = power { ("*"|"/") power }
//	power  = unary [ "^" power ]
//	unary  = ["-"|"+"] unary | postfix
//	postfix = primary { "%" }
type parser struct {
	src  string
	pos  int
	vars map[string]float64
}

func (p *parser) parse() (float64, error) {
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, newError("syntax_error", "unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	return v, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.power()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.power()
		if err != nil {
			return 0, err
		}
		if op == '/' {
			if right == 0 {
				return 0, newError("division_by_zero", "division by zero")
			}
			left /= right
		} else {
			left *= right
		}
	}
}

func (p *parser) power() (float64, error) {
	base, err := p.unary()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		exp, err := p.power()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *parser) unary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case '+':
		p.pos++
		return p.unary()
	}
	return p.postfix()
}

func (p *parser) postfix() (float64, error) {
	v, err := p.primary()
	if err != nil {
		return 0, err
	}
	for p.peek() == '%' {
		p.pos++
		v /= 100
	}
	return v, nil
}

func (p *parser) primary() (float64, error) {
	c := p.peek()
	switch {
	case c == 0:
		return 0, newError("syntax_error", "unexpected end of expression")
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, newError("syntax_error", "missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.' || p.src[p.pos] == ',') {
			p.pos++
		}
		raw := strings.ReplaceAll(p.src[start:p.pos], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, newError("syntax_error", "invalid number %q", raw)
		}
		return v, nil
	case unicode.IsLetter(rune(c)) || c == '_':
		start := p.pos
		for p.pos < len(p.src) && (unicode.IsLetter(rune(p.src[p.pos])) || unicode.IsDigit(rune(p.src[p.pos])) || p.src[p.pos] == '_') {
			p.pos++
		}
		name := p.src[start:p.pos]
		v, ok := p.vars[name]
		if !ok {
			return 0, newError("unknown_variable", "variable %q is not defined", name)
		}
		return v, nil
	}
	return 0, newError("syntax_error", "unexpected %q at position %d", c, p.pos)
}
