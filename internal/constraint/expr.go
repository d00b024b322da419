package constraint

import (
	"fmt"
	"strconv"
)

// Expr is a parsed formula expression over numbers and peak references.
type Expr interface {
	// Eval computes the expression using resolve to look up referenced
	// parameter values.
	Eval(resolve func(Ref) (float64, error)) (float64, error)
	// Refs lists every parameter reference in the expression.
	Refs() []Ref
	// Rename substitutes peak labels, used when a workspace relabels
	// peaks. Returns a new expression.
	Rename(mapping map[string]string) Expr
	// String renders the expression; re-parsing yields an equal tree.
	String() string

	precedence() int
}

const (
	precAdd  = 1
	precMul  = 2
	precAtom = 3
)

type numberExpr float64

func (n numberExpr) Eval(func(Ref) (float64, error)) (float64, error) { return float64(n), nil }
func (n numberExpr) Refs() []Ref                                      { return nil }
func (n numberExpr) Rename(map[string]string) Expr                    { return n }
func (n numberExpr) precedence() int                                  { return precAtom }

func (n numberExpr) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

type refExpr Ref

func (r refExpr) Eval(resolve func(Ref) (float64, error)) (float64, error) {
	return resolve(Ref(r))
}

func (r refExpr) Refs() []Ref { return []Ref{Ref(r)} }

func (r refExpr) Rename(mapping map[string]string) Expr {
	if to, ok := mapping[r.Peak]; ok {
		return refExpr{Peak: to, Kind: r.Kind}
	}
	return r
}

func (r refExpr) String() string { return r.Peak }
func (r refExpr) precedence() int { return precAtom }

type negExpr struct {
	operand Expr
}

func (e negExpr) Eval(resolve func(Ref) (float64, error)) (float64, error) {
	v, err := e.operand.Eval(resolve)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

func (e negExpr) Refs() []Ref { return e.operand.Refs() }

func (e negExpr) Rename(mapping map[string]string) Expr {
	return negExpr{operand: e.operand.Rename(mapping)}
}

func (e negExpr) String() string {
	return "-" + wrap(e.operand, precAtom)
}

func (e negExpr) precedence() int { return precMul }

type binaryExpr struct {
	op          byte
	left, right Expr
}

func (e binaryExpr) Eval(resolve func(Ref) (float64, error)) (float64, error) {
	l, err := e.left.Eval(resolve)
	if err != nil {
		return 0, err
	}
	r, err := e.right.Eval(resolve)
	if err != nil {
		return 0, err
	}
	switch e.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, fmt.Errorf("division by zero in formula")
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown operator %q", e.op)
}

func (e binaryExpr) Refs() []Ref {
	return append(e.left.Refs(), e.right.Refs()...)
}

func (e binaryExpr) Rename(mapping map[string]string) Expr {
	return binaryExpr{op: e.op, left: e.left.Rename(mapping), right: e.right.Rename(mapping)}
}

func (e binaryExpr) precedence() int {
	if e.op == '+' || e.op == '-' {
		return precAdd
	}
	return precMul
}

func (e binaryExpr) String() string {
	p := e.precedence()
	left := wrap(e.left, p)
	// Parsing is left-associative, so an equal precedence right
	// operand needs parentheses under every operator to re-parse to
	// the same tree: A * (B / C) must not render as A * B / C.
	right := wrap(e.right, p+1)
	return fmt.Sprintf("%s %c %s", left, e.op, right)
}

// wrap parenthesizes e when its precedence is below min.
func wrap(e Expr, min int) string {
	if e.precedence() < min {
		return "(" + e.String() + ")"
	}
	return e.String()
}
